package record

import (
	"maps"
	"time"
)

type clearMarker struct{}

// Cleared — явный маркер «очистить колонку», отличный от «не задано».
// В payload соответствует JSON null.
var Cleared any = clearMarker{}

func IsCleared(v any) bool {
	_, ok := v.(clearMarker)
	return ok
}

// Row — строка хранилища: колонка → сырое значение.
type Row map[string]any

// Record — экземпляр сущности: набор свойств, привязанный к схеме.
// Valid() == true только после успешного построения или приёма payload.
type Record struct {
	schema *Schema
	values map[string]any
	valid  bool
}

// New — пустой экземпляр (valid == false).
func New(s *Schema) *Record {
	return &Record{schema: s, values: make(map[string]any)}
}

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) Kind() Kind {
	if r == nil || r.schema == nil {
		return ""
	}
	return r.schema.Kind
}

func (r *Record) Valid() bool { return r != nil && r.valid }

func (r *Record) MarkValid() { r.valid = true }

// Properties, Columns и Identifiers — списки из схемы.
func (r *Record) Properties() []string  { return r.schema.PropertyNames() }
func (r *Record) Columns() []string     { return r.schema.Columns() }
func (r *Record) Identifiers() []string { return []string{r.schema.ID} }

func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Set присваивает значение известному свойству. Неизвестные имена игнорируются.
func (r *Record) Set(name string, v any) bool {
	if _, ok := r.schema.byName[name]; !ok {
		return false
	}
	r.values[name] = v
	return true
}

// Unset возвращает свойство в состояние «не задано».
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// ID — значение идентифицирующего свойства как int64.
func (r *Record) ID() (int64, bool) {
	v, ok := r.Get(r.schema.ID)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

// External — представление по внешним именам (для ответа API).
// Маркер очистки отдаётся как nil, секретные свойства пропускаются.
func (r *Record) External() map[string]any {
	out := make(map[string]any, len(r.values))
	for name, v := range r.values {
		if p, _ := r.schema.Property(name); p.Secret {
			continue
		}
		ext, _ := r.schema.ExternalFor(name)
		if IsCleared(v) {
			out[ext] = nil
			continue
		}
		if t, ok := v.(time.Time); ok {
			out[ext] = t.UTC().Format(time.RFC3339)
			continue
		}
		out[ext] = v
	}
	return out
}

// Values — копия набора свойств (для тестов и отладки).
func (r *Record) Values() map[string]any {
	return maps.Clone(r.values)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// Result — исход пользовательского хука.
type Result int

const (
	// Declined — хук не применим, работает общий механизм
	Declined Result = iota
	Accepted
	Rejected
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "declined"
	}
}

// Verdict — результат хука с сообщением для лога/ответа.
type Verdict struct {
	Result  Result
	Message string
}

func Decline() Verdict { return Verdict{Result: Declined} }

func Accept() Verdict { return Verdict{Result: Accepted} }

func Reject(msg string) Verdict { return Verdict{Result: Rejected, Message: msg} }
