package record

import (
	"fmt"
	"reflect"
	"time"
)

// DiffOptions управляет тем, какие поля попадают в ChangeSet.
type DiffOptions struct {
	IncludeID    bool // включать идентифицирующую колонку
	AllowClear   bool // маркер очистки попадает в дельту
	AllowComplex bool // сравнивать списки
}

// Change — одна пара (колонка, значение). Value может быть Cleared.
type Change struct {
	Column string
	Value  any
}

// ChangeSet — упорядоченная дельта для частичного UPDATE.
type ChangeSet []Change

func (cs ChangeSet) Empty() bool { return len(cs) == 0 }

func (cs ChangeSet) Columns() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Column)
	}
	return out
}

func (cs ChangeSet) Get(column string) (any, bool) {
	for _, c := range cs {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// Row — дельта как строка хранилища; маркер очистки становится nil (NULL).
func (cs ChangeSet) Row() Row {
	out := make(Row, len(cs))
	for _, c := range cs {
		if IsCleared(c.Value) {
			out[c.Column] = nil
			continue
		}
		out[c.Column] = c.Value
	}
	return out
}

// Diff считает колонки, в которых candidate отличается от baseline.
// baseline == nil — сравнение с пустым экземпляром.
func (m *Mapper) Diff(candidate, baseline *Record, opts DiffOptions) (out ChangeSet) {
	if candidate == nil || candidate.schema == nil {
		return nil
	}
	s := candidate.schema
	if baseline == nil {
		baseline = New(s)
	}
	if baseline.Kind() != s.Kind {
		m.logger.Warn("diff kind mismatch", "candidate", s.Kind, "baseline", baseline.Kind())
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("diff failed", "kind", s.Kind, "panic", fmt.Sprint(p))
			out = nil
		}
	}()

	for _, name := range s.Ordered(s.PropertyNames()) {
		p, _ := s.Property(name)
		if p.Column == "" {
			continue
		}

		// (a) хук берём как есть
		if p.Diff != nil {
			if v, changed := p.Diff(candidate, baseline, opts); changed {
				out = append(out, Change{Column: p.Column, Value: v})
			}
			continue
		}
		// (b)
		if name == s.ID && !opts.IncludeID {
			continue
		}
		// (c)
		cv, ok := candidate.values[name]
		if !ok {
			continue
		}
		bv, hasBase := baseline.values[name]

		// (d) повторная очистка уже очищенного — не изменение
		if IsCleared(cv) {
			if opts.AllowClear && !IsCleared(bv) {
				out = append(out, Change{Column: p.Column, Value: Cleared})
			}
			continue
		}

		// (e)
		if isList(cv) {
			if !opts.AllowComplex {
				continue
			}
			equal := p.Equal
			if equal == nil {
				equal = SortedEqual
			}
			if !hasBase || !isList(bv) || !equal(cv, bv) {
				out = append(out, Change{Column: p.Column, Value: copyList(cv)})
			}
			continue
		}

		// (f)
		if t, isTime := cv.(time.Time); isTime {
			bt, baseTime := bv.(time.Time)
			if !baseTime || bt.UnixMilli() != t.UnixMilli() {
				out = append(out, Change{Column: p.Column, Value: cloneTime(t)})
			}
			continue
		}

		// (g) объекты не сравниваем
		if _, isMap := cv.(map[string]any); isMap {
			continue
		}
		if !hasBase || !strictEqual(cv, bv) {
			out = append(out, Change{Column: p.Column, Value: cv})
		}
	}
	return out
}

// strictEqual — сравнение без приведения типов: int64(1) != float64(1).
func strictEqual(a, b any) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if a == nil {
		return true
	}
	if !reflect.TypeOf(a).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
