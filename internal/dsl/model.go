package dsl

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// FieldType — тип поля формы (как его видит клиент).
type FieldType string

const (
	TypeText               FieldType = "TEXT"
	TypeNumber             FieldType = "NUMBER"
	TypeEmail              FieldType = "EMAIL"
	TypePassword           FieldType = "PASSWORD"
	TypeDate               FieldType = "DATE"
	TypeSelectList         FieldType = "SELECT_LIST"
	TypeMultiSelectionList FieldType = "MULTI_SELECTION_LIST"
	TypeParagraph          FieldType = "PARAGRAPH"
	TypeRangeSlider        FieldType = "RANGE_SLIDER"
	TypeToggle             FieldType = "TOGGLE"
	TypeUserIDList         FieldType = "USER_ID_LIST"
	TypeGroupIDList        FieldType = "GROUP_ID_LIST"
	TypeCustom             FieldType = "CUSTOM"
)

var knownTypes = map[FieldType]struct{}{
	TypeText: {}, TypeNumber: {}, TypeEmail: {}, TypePassword: {}, TypeDate: {},
	TypeSelectList: {}, TypeMultiSelectionList: {}, TypeParagraph: {},
	TypeRangeSlider: {}, TypeToggle: {}, TypeUserIDList: {}, TypeGroupIDList: {},
	TypeCustom: {},
}

// IsList — значение поля является списком.
func (t FieldType) IsList() bool {
	return t == TypeMultiSelectionList || t.IsIDList()
}

func (t FieldType) IsIDList() bool {
	return t == TypeUserIDList || t == TypeGroupIDList
}

func (t FieldType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Bounds — ограничения длины в символах (code points). Max == 0 — без верхней границы.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max,omitempty"`
}

// Field описывает одно редактируемое поле формы.
type Field struct {
	Name           string            `json:"name"` // внешнее имя в payload
	Title          string            `json:"title"`
	Type           FieldType         `json:"type"`
	Required       bool              `json:"required"`
	Unique         bool              `json:"unique,omitempty"`
	Length         *Bounds           `json:"length,omitempty"`
	Pattern        string            `json:"pattern,omitempty"`
	PatternMessage string            `json:"patternMessage,omitempty"`
	Enum           []string          `json:"options,omitempty"`
	OptionSet      string            `json:"optionSet,omitempty"` // options=@name → reference catalog
	CustomField    string            `json:"customField,omitempty"`
	MaxField       string            `json:"maxField,omitempty"`
	MinValue       *float64          `json:"minValue,omitempty"`
	MaxValue       *float64          `json:"maxValue,omitempty"`
	Environments   []string          `json:"environments,omitempty"`
	Options        map[string]string `json:"-"` // сырые опции из DSL

	re *regexp.Regexp
}

// Label — человекочитаемое имя поля для сообщений.
func (f Field) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// Regexp возвращает скомпилированный паттерн (полное совпадение) или nil.
func (f Field) Regexp() *regexp.Regexp {
	if f.re != nil || f.Pattern == "" {
		return f.re
	}
	re, err := compilePattern(f.Pattern)
	if err != nil {
		return nil
	}
	return re
}

// AppliesTo — поле действует в окружении env (пустой список — везде).
func (f Field) AppliesTo(env string) bool {
	if len(f.Environments) == 0 || env == "" {
		return true
	}
	for _, e := range f.Environments {
		if strings.EqualFold(e, env) {
			return true
		}
	}
	return false
}

func (f Field) HasOption(v string) bool {
	return slices.Contains(f.Enum, v)
}

func compilePattern(p string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + p + `)$`)
}

// normalize применяет инварианты дескриптора: unique ⇒ required,
// SELECT_LIST без pattern получает pattern из набора опций.
func (f *Field) normalize() error {
	if f.Unique {
		f.Required = true
	}
	if f.Title == "" {
		f.Title = f.Name
	}
	if f.Type == TypeSelectList && f.Pattern == "" && len(f.Enum) > 0 {
		quoted := make([]string, 0, len(f.Enum))
		for _, o := range f.Enum {
			quoted = append(quoted, regexp.QuoteMeta(o))
		}
		f.Pattern = strings.Join(quoted, "|")
	}
	f.re = nil
	if f.Pattern != "" {
		re, err := compilePattern(f.Pattern)
		if err != nil {
			return fmt.Errorf("field %q: bad pattern: %w", f.Name, err)
		}
		f.re = re
	}
	if f.Length != nil && f.Length.Max > 0 && f.Length.Min > f.Length.Max {
		return fmt.Errorf("field %q: min length %d exceeds max %d", f.Name, f.Length.Min, f.Length.Max)
	}
	return nil
}

// Form — список полей одной операции сущности (signup, edit, admin ...).
type Form struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

func (f *Form) Field(name string) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

// Entity описывает сущность и её формы.
type Entity struct {
	Module string
	Name   string
	Forms  []*Form
}

func (e *Entity) Form(name string) (*Form, bool) {
	for _, f := range e.Forms {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

func (e *Entity) FQN() string {
	return e.Module + "." + e.Name
}

// Catalog — все загруженные сущности, ключ FQN ("module.Entity").
type Catalog map[string]*Entity
