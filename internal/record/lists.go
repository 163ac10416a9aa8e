package record

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func isList(v any) bool {
	switch v.(type) {
	case []string, []int64, []float64, []any:
		return true
	}
	return false
}

func listLen(v any) int {
	switch l := v.(type) {
	case []string:
		return len(l)
	case []int64:
		return len(l)
	case []float64:
		return len(l)
	case []any:
		return len(l)
	}
	return 0
}

func copyList(v any) any {
	switch l := v.(type) {
	case []string:
		return slices.Clone(l)
	case []int64:
		return slices.Clone(l)
	case []float64:
		return slices.Clone(l)
	case []any:
		return slices.Clone(l)
	}
	return v
}

// SortedEqual — сравнение списков без учёта порядка: элементы сериализуются
// в JSON и сортируются. Для списков объектов нужен свой Equal.
func SortedEqual(a, b any) bool {
	sa, okA := serializeSorted(a)
	sb, okB := serializeSorted(b)
	if !okA || !okB {
		return false
	}
	return slices.Equal(sa, sb)
}

func serializeSorted(v any) ([]string, bool) {
	var items []any
	switch l := v.(type) {
	case []string:
		for _, x := range l {
			items = append(items, x)
		}
	case []int64:
		for _, x := range l {
			items = append(items, x)
		}
	case []float64:
		for _, x := range l {
			items = append(items, x)
		}
	case []any:
		items = l
	default:
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, false
		}
		out = append(out, string(b))
	}
	slices.Sort(out)
	return out, true
}

// IntSetEqual — равенство множеств целых (дубликаты не важны).
func IntSetEqual(a, b any) bool {
	la, errA := DecodeIntList(a)
	lb, errB := DecodeIntList(b)
	if errA != nil || errB != nil {
		return false
	}
	return slices.Equal(uniqSorted(la), uniqSorted(lb))
}

// StringSetEqual — равенство множеств строк без учёта регистра.
func StringSetEqual(a, b any) bool {
	la, errA := DecodeStringList(a)
	lb, errB := DecodeStringList(b)
	if errA != nil || errB != nil {
		return false
	}
	for i := range la {
		la[i] = strings.ToLower(la[i])
	}
	for i := range lb {
		lb[i] = strings.ToLower(lb[i])
	}
	return slices.Equal(uniqSorted(la), uniqSorted(lb))
}

func uniqSorted[T int64 | string](in []T) []T {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// DecodeStringList принимает список строк в любом виде, в котором он
// приходит из хранилища или payload: []string, []any, JSON-строка или байты.
func DecodeStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: %T is not a string", i, x)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return decodeJSONList[string](v)
	case []byte:
		return decodeJSONList[string](string(v))
	default:
		return nil, fmt.Errorf("unsupported list value %T", raw)
	}
}

// DecodeIntList — то же для списков целых идентификаторов.
func DecodeIntList(raw any) ([]int64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []int64:
		return slices.Clone(v), nil
	case []float64:
		out := make([]int64, 0, len(v))
		for i, x := range v {
			n, ok := asInt64(x)
			if !ok {
				return nil, fmt.Errorf("element %d: %v is not an integer", i, x)
			}
			out = append(out, n)
		}
		return out, nil
	case []any:
		out := make([]int64, 0, len(v))
		for i, x := range v {
			n, ok := ToInt64(x)
			if !ok {
				return nil, fmt.Errorf("element %d: %v is not an integer", i, x)
			}
			out = append(out, n)
		}
		return out, nil
	case string:
		return decodeJSONList[int64](v)
	case []byte:
		return decodeJSONList[int64](string(v))
	default:
		return nil, fmt.Errorf("unsupported list value %T", raw)
	}
}

func decodeJSONList[T any](s string) ([]T, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// EncodeList сериализует список для jsonb/text колонки.
func EncodeList(v any) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToInt64 приводит число или числовую строку к int64 без потери точности.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return asInt64(v)
}
