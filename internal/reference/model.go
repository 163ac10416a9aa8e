package reference

// EnumDirectory описывает один справочник типа enum (наборы опций для SELECT_LIST).
type EnumDirectory struct {
	Name  string     `yaml:"name"`
	Items []EnumItem `yaml:"items"`
}

type EnumItem struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
	// Дополнительные поля: Order, ValidFrom, ValidTo
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"validFrom,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"validTo,omitempty"`
}

// Codes — коды элементов в порядке order (при равенстве — как в файле).
func (d EnumDirectory) Codes() []string {
	items := append([]EnumItem(nil), d.Items...)
	sortItems(items)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}

// Role — роль пользователя. Order задаёт старшинство: больше — старше.
type Role struct {
	Name   string `yaml:"name"`
	Order  int    `yaml:"order"`
	MinAge int    `yaml:"min_age"`
	MaxAge int    `yaml:"max_age"`
}

// RoleCatalog — справочник ролей с возрастными границами.
type RoleCatalog struct {
	Roles []Role `yaml:"roles"`
}
