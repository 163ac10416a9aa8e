package dsl

import "strings"

// Lookup находит сущность по паре {module, name}.
// Если module пустой, ищет ЕДИНСТВЕННУЮ сущность с таким именем среди всех модулей.
func (c Catalog) Lookup(module, name string) (*Entity, bool) {
	if name == "" {
		return nil, false
	}
	ml := strings.ToLower(strings.TrimSpace(module))
	nl := strings.ToLower(strings.TrimSpace(name))

	// 1) модуль задан — точный ключ, потом регистронезависимо
	if ml != "" {
		if e, ok := c[module+"."+name]; ok {
			return e, true
		}
		for _, e := range c {
			if strings.ToLower(e.Module) == ml && strings.ToLower(e.Name) == nl {
				return e, true
			}
		}
		return nil, false
	}

	// 2) модуля нет — имя должно быть уникальным
	var found *Entity
	for _, e := range c {
		if strings.ToLower(e.Name) == nl {
			if found != nil {
				return nil, false
			}
			found = e
		}
	}
	return found, found != nil
}

// Form — поля формы form сущности name (без модуля).
func (c Catalog) Form(name, form string) ([]Field, bool) {
	e, ok := c.Lookup("", name)
	if !ok {
		return nil, false
	}
	f, ok := e.Form(form)
	if !ok {
		return nil, false
	}
	return f.Fields, true
}
