// Package record — in-memory представление сущностей и перевод между ним,
// строками хранилища и внешними именами payload.
package record

import (
	"fmt"
	"slices"
)

// Kind — вид сущности ("user", "group", ...).
type Kind string

// ValueKind — как значение свойства хранится в памяти.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindInteger
	KindBool
	KindTime
	KindList
	KindObject
)

// ExtractFunc переводит сырое значение колонки в значение свойства.
type ExtractFunc func(raw any) (any, error)

// CloneFunc копирует производное свойство при клонировании.
type CloneFunc func(v any) any

// DiffFunc считает значение колонки для одного свойства. Diff берёт результат как есть:
// changed == false — «без изменений».
type DiffFunc func(candidate, baseline *Record, opts DiffOptions) (value any, changed bool)

// EqualFunc сравнивает два списка.
type EqualFunc func(a, b any) bool

// Property — строка таблицы имён сущности.
type Property struct {
	Name     string
	Column   string // пусто — не хранится
	External string // пусто — совпадает с Name
	Kind     ValueKind
	// Unique — значение уникально в таблице (индекс и проверка в хранилище)
	Unique   bool
	// Secret — не отдаётся во внешнем представлении
	Secret   bool

	Equal   EqualFunc
	Extract ExtractFunc
	Clone   CloneFunc
	Diff    DiffFunc
}

// Schema — явная таблица свойств вида сущности. Она же мост имён:
// внешнее имя ↔ свойство ↔ колонка.
type Schema struct {
	Kind  Kind
	Table string
	// ID — идентифицирующее свойство
	ID string
	// RoleProperty — свойство с ролями для контекста валидации (опционально)
	RoleProperty string
	Properties   []Property
	// Priority — свойства, которые обрабатываются раньше остальных
	Priority []string

	byName     map[string]int
	byExternal map[string]int
	byColumn   map[string]int
}

// NewSchema проверяет и индексирует схему.
func NewSchema(s Schema) (*Schema, error) {
	s.byName = make(map[string]int, len(s.Properties))
	s.byExternal = make(map[string]int, len(s.Properties))
	s.byColumn = make(map[string]int, len(s.Properties))
	for i, p := range s.Properties {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: property %d has no name", s.Kind, i)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate property %q", s.Kind, p.Name)
		}
		if p.Kind == KindList && p.Equal == nil {
			return nil, fmt.Errorf("%s: list property %q has no Equal", s.Kind, p.Name)
		}
		s.byName[p.Name] = i
		if p.External != "" && p.External != p.Name {
			if _, dup := s.byExternal[p.External]; dup {
				return nil, fmt.Errorf("%s: duplicate external name %q", s.Kind, p.External)
			}
			s.byExternal[p.External] = i
		}
		if p.Column != "" {
			if _, dup := s.byColumn[p.Column]; dup {
				return nil, fmt.Errorf("%s: duplicate column %q", s.Kind, p.Column)
			}
			s.byColumn[p.Column] = i
		}
	}
	if _, ok := s.byName[s.ID]; !ok {
		return nil, fmt.Errorf("%s: id property %q is not declared", s.Kind, s.ID)
	}
	if s.RoleProperty != "" {
		if _, ok := s.byName[s.RoleProperty]; !ok {
			return nil, fmt.Errorf("%s: role property %q is not declared", s.Kind, s.RoleProperty)
		}
	}
	for _, name := range s.Priority {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("%s: priority property %q is not declared", s.Kind, name)
		}
	}
	return &s, nil
}

// MustSchema — NewSchema для таблиц уровня пакета.
func MustSchema(s Schema) *Schema {
	out, err := NewSchema(s)
	if err != nil {
		panic(err)
	}
	return out
}

func (s *Schema) Property(name string) (Property, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Property{}, false
	}
	return s.Properties[i], true
}

// PropertyNames — канонический список свойств в порядке объявления.
func (s *Schema) PropertyNames() []string {
	out := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		out = append(out, p.Name)
	}
	return out
}

// Columns — список колонок хранилища в порядке объявления.
func (s *Schema) Columns() []string {
	out := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		if p.Column != "" {
			out = append(out, p.Column)
		}
	}
	return out
}

func (s *Schema) IDColumn() string {
	return s.Properties[s.byName[s.ID]].Column
}

// PropertyForExternal: внешнее имя → свойство. Незарегистрированное имя,
// которое есть в каноническом списке, отображается само в себя.
func (s *Schema) PropertyForExternal(external string) (string, bool) {
	if i, ok := s.byExternal[external]; ok {
		return s.Properties[i].Name, true
	}
	if _, ok := s.byName[external]; ok {
		return external, true
	}
	return "", false
}

// ExternalFor — обратное к PropertyForExternal.
func (s *Schema) ExternalFor(name string) (string, bool) {
	i, ok := s.byName[name]
	if !ok {
		return "", false
	}
	if ext := s.Properties[i].External; ext != "" {
		return ext, true
	}
	return name, true
}

// PropertyForColumn: колонка → свойство, с тем же fallback на идентичность.
func (s *Schema) PropertyForColumn(column string) (string, bool) {
	if i, ok := s.byColumn[column]; ok {
		return s.Properties[i].Name, true
	}
	if _, ok := s.byName[column]; ok {
		return column, true
	}
	return "", false
}

func (s *Schema) ColumnFor(name string) (string, bool) {
	i, ok := s.byName[name]
	if !ok || s.Properties[i].Column == "" {
		return "", false
	}
	return s.Properties[i].Column, true
}

// Ordered переносит приоритетные свойства в начало (в порядке Priority),
// остальные сохраняют исходный порядок.
func (s *Schema) Ordered(names []string) []string {
	if len(s.Priority) == 0 {
		return slices.Clone(names)
	}
	out := make([]string, 0, len(names))
	for _, p := range s.Priority {
		if slices.Contains(names, p) {
			out = append(out, p)
		}
	}
	for _, n := range names {
		if !slices.Contains(s.Priority, n) {
			out = append(out, n)
		}
	}
	return out
}
