package dsl

import (
	"fmt"
	"sort"
)

type Issue struct {
	Entity  string `json:"entity"` // FQN: module.Entity
	Form    string `json:"form"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"` // не блокирует загрузку
}

// PropertyResolver сообщает, знает ли сущность внешнее имя поля.
type PropertyResolver func(entity, external string) bool

// Lint проверяет базовые противоречия в каталоге.
// resolve может быть nil — тогда соответствие полей сущностям не проверяется.
func (c Catalog) Lint(resolve PropertyResolver) []Issue {
	var issues []Issue

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, fqn := range keys {
		e := c[fqn]
		for _, form := range e.Forms {
			add := func(field, code, msg string) {
				issues = append(issues, Issue{Entity: fqn, Form: form.Name, Field: field, Code: code, Message: msg})
			}
			warn := func(field, code, msg string) {
				issues = append(issues, Issue{Entity: fqn, Form: form.Name, Field: field, Code: code, Message: msg, Warning: true})
			}
			for _, f := range form.Fields {
				if f.CustomField != "" {
					if _, ok := form.Field(f.CustomField); !ok {
						add(f.Name, "custom_field_unknown", fmt.Sprintf("customField %q is not declared in form", f.CustomField))
					}
				}
				if f.MaxField != "" {
					if _, ok := form.Field(f.MaxField); !ok {
						add(f.Name, "max_field_unknown", fmt.Sprintf("maxField %q is not declared in form", f.MaxField))
					}
				}
				if (f.Type == TypeSelectList || f.Type == TypeMultiSelectionList) && len(f.Enum) == 0 {
					add(f.Name, "options_empty", "list field has no options")
				}
				if f.Type == TypeRangeSlider && (f.MinValue == nil || f.MaxValue == nil) {
					add(f.Name, "range_unbounded", "RANGE_SLIDER requires minValue and maxValue")
				}
				if f.Type == TypeRangeSlider && f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
					add(f.Name, "range_inverted", "minValue exceeds maxValue")
				}
				if resolve != nil && !resolve(e.Name, f.Name) && f.Type != TypeCustom {
					warn(f.Name, "property_unknown", "field does not map to any entity property")
				}
			}
		}
	}
	return issues
}

// Blocking — только ошибки, без предупреждений.
func Blocking(issues []Issue) []Issue {
	var out []Issue
	for _, it := range issues {
		if !it.Warning {
			out = append(out, it)
		}
	}
	return out
}
