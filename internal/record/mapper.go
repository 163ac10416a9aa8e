package record

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// Mapper строит экземпляры из строк хранилища, клонирует их и считает дельты.
// Ошибки конфигурации схемы логируются, наружу не выбрасываются.
type Mapper struct {
	logger *slog.Logger
}

func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// FromRow строит экземпляр из строки хранилища. При сбое возвращает
// пустой экземпляр с valid == false.
func (m *Mapper) FromRow(s *Schema, row Row) (rec *Record, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("build from row failed", "kind", s.Kind, "panic", fmt.Sprint(p))
			rec, ok = New(s), false
		}
	}()

	rec = New(s)
	cols := make([]string, 0, len(row))
	for _, name := range s.Ordered(s.PropertyNames()) {
		if col, ok := s.ColumnFor(name); ok {
			cols = append(cols, col)
		}
	}
	// колонки вне схемы идут после, в стабильном порядке
	var extra []string
	for col := range row {
		if _, ok := s.byColumn[col]; !ok {
			extra = append(extra, col)
		}
	}
	slices.Sort(extra)
	cols = append(cols, extra...)

	for _, col := range cols {
		raw, present := row[col]
		if !present {
			continue
		}
		name, ok := s.PropertyForColumn(col)
		if !ok {
			// пробел в конфигурации, не ошибка
			m.logger.Warn("unmapped column", "kind", s.Kind, "column", col)
			continue
		}
		if _, done := rec.values[name]; done {
			continue
		}
		p, _ := s.Property(name)

		if p.Extract != nil {
			v, err := p.Extract(raw)
			if err != nil {
				m.logger.Warn("extract column failed", "kind", s.Kind, "column", col, "error", err)
				continue
			}
			if v != nil {
				rec.values[name] = v
			}
			continue
		}

		v, ok := copyRaw(raw)
		if !ok {
			m.logger.Warn("unsupported column value", "kind", s.Kind, "column", col, "type", fmt.Sprintf("%T", raw))
			continue
		}
		if v != nil {
			rec.values[name] = v
		}
	}

	rec.valid = true
	return rec, true
}

// Clone копирует src в новый экземпляр схемы s. Списки копируются, только если
// непустые; даты пересоздаются. Несовпадение вида даёт экземпляр с valid == false.
func (m *Mapper) Clone(s *Schema, src *Record) (rec *Record) {
	if src == nil || src.schema == nil || src.schema.Kind != s.Kind {
		m.logger.Warn("clone kind mismatch", "want", s.Kind, "got", src.Kind())
		return New(s)
	}
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("clone failed", "kind", s.Kind, "panic", fmt.Sprint(p))
			rec = New(s)
		}
	}()

	rec = New(s)
	for _, name := range s.Ordered(s.PropertyNames()) {
		v, ok := src.values[name]
		if !ok {
			continue
		}
		p, _ := s.Property(name)
		if p.Clone != nil {
			if cv := p.Clone(v); cv != nil {
				rec.values[name] = cv
			}
			continue
		}
		switch t := v.(type) {
		case time.Time:
			rec.values[name] = cloneTime(t)
		case map[string]any:
			rec.values[name] = maps.Clone(t)
		default:
			if isList(v) {
				if listLen(v) > 0 {
					rec.values[name] = copyList(v)
				}
				continue
			}
			rec.values[name] = v
		}
	}
	rec.valid = true
	return rec
}

// cloneTime пересоздаёт дату из миллисекунд, чтобы не делить состояние.
func cloneTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// copyRaw копирует скалярное значение колонки. ok == false — тип не поддержан.
func copyRaw(raw any) (any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case string, bool, int64, float64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case float32:
		return float64(v), true
	case []byte:
		return string(v), true
	case time.Time:
		return cloneTime(v), true
	case []string, []int64, []float64:
		return copyList(v), true
	default:
		return nil, false
	}
}
