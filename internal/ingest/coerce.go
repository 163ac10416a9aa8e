package ingest

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"rekord/internal/dsl"
	"rekord/internal/record"
	"rekord/internal/validate"
)

// текстовые типы сохраняют "true"/"false" как строку
var textual = map[dsl.FieldType]bool{
	dsl.TypeText:       true,
	dsl.TypeParagraph:  true,
	dsl.TypeEmail:      true,
	dsl.TypePassword:   true,
	dsl.TypeSelectList: true,
}

// Coerce приводит сырое значение payload к значению свойства по типу поля.
// Паника внутри считается ошибкой приведения.
func Coerce(f dsl.Field, raw any) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, fmt.Errorf("coerce %s: %v", f.Name, p)
		}
	}()

	if record.IsCleared(raw) {
		return raw, nil
	}
	if s, ok := raw.(string); ok && !textual[f.Type] {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}

	switch {
	case f.Type == dsl.TypeDate:
		t, ok := validate.ParseDate(raw)
		if !ok {
			return nil, fmt.Errorf("coerce %s: not a date: %v", f.Name, raw)
		}
		return t, nil

	case f.Type == dsl.TypeNumber || f.Type == dsl.TypeRangeSlider:
		n, ok := validate.Number(raw)
		if !ok {
			return nil, fmt.Errorf("coerce %s: not a number: %v", f.Name, raw)
		}
		return n, nil

	case f.Type == dsl.TypeToggle:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(b))
		}
		return nil, fmt.Errorf("coerce %s: not a boolean: %v", f.Name, raw)

	case f.Type == dsl.TypeMultiSelectionList:
		l, err := record.DecodeStringList(raw)
		if err != nil {
			return nil, fmt.Errorf("coerce %s: %w", f.Name, err)
		}
		return slices.Clone(l), nil

	case f.Type.IsIDList():
		items, ok := validate.Elements(raw)
		if !ok {
			return nil, fmt.Errorf("coerce %s: not a list", f.Name)
		}
		out := make([]int64, 0, len(items))
		for i, it := range items {
			n, ok := validate.PositiveInt(it)
			if !ok {
				return nil, fmt.Errorf("coerce %s: element %d is not an id", f.Name, i)
			}
			out = append(out, n)
		}
		return out, nil
	}
	return raw, nil
}
