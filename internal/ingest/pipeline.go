// Package ingest превращает внешний payload в проверенный экземпляр сущности
// или в структурированный отказ.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"rekord/internal/dsl"
	"rekord/internal/record"
	"rekord/internal/validate"
)

// Rules — хуки конкретной сущности. Оба метода возвращают трёхзначный вердикт:
// Declined передаёт поле общему механизму.
type Rules interface {
	// PreValidate выполняется до общей проверки (например, уникальность).
	PreValidate(ctx context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict
	// Parse может сам записать значение в rec (Accepted).
	Parse(ctx context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict
}

// NoRules — сущность без собственных хуков.
type NoRules struct{}

func (NoRules) PreValidate(context.Context, dsl.Field, any, *record.Record) record.Verdict {
	return record.Decline()
}

func (NoRules) Parse(context.Context, dsl.Field, any, *record.Record) record.Verdict {
	return record.Decline()
}

type Pipeline struct {
	mapper    *record.Mapper
	logger    *slog.Logger
	env       string
	bounds    validate.AgeBounds
	now       func() time.Time
	basicOnly bool
}

type Option func(*Pipeline)

// WithEnvironment — окружение развёртывания для фильтра полей.
func WithEnvironment(env string) Option {
	return func(p *Pipeline) { p.env = env }
}

func WithAgeBounds(b validate.AgeBounds) Option {
	return func(p *Pipeline) { p.bounds = b }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(mapper *record.Mapper, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = record.NewMapper(logger)
	}
	p := &Pipeline{mapper: mapper, logger: logger, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Basic — копия конвейера в облегчённом режиме проверки.
func (p *Pipeline) Basic() *Pipeline {
	cp := *p
	cp.basicOnly = true
	return &cp
}

// Ingest применяет payload к копии baseline (nil — пустой экземпляр).
// Поля обрабатываются по одному в порядке приоритета схемы, хуки вызываются
// строго последовательно.
func (p *Pipeline) Ingest(ctx context.Context, s *record.Schema, baseline *record.Record, payload map[string]any, fields []dsl.Field, rules Rules) (*record.Record, *Rejection) {
	if rules == nil {
		rules = NoRules{}
	}
	var rec *record.Record
	if baseline == nil {
		rec = record.New(s)
	} else {
		rec = p.mapper.Clone(s, baseline)
		if !rec.Valid() {
			return nil, internal("", fmt.Sprintf("baseline kind %q does not match %q", baseline.Kind(), s.Kind), "Internal error")
		}
	}
	log := p.logger.With("kind", s.Kind)

	for _, f := range p.order(s, fields) {
		prop, known := s.PropertyForExternal(f.Name)
		raw, inPayload := lookup(payload, f.Name)

		// 1
		if !inPayload && f.Required {
			if _, has := baseValue(rec, prop, known); !has {
				label := fmt.Sprintf("%s is Required.", f.Label())
				return nil, badRequest(f.Name, "required field is absent", label)
			}
		}
		// 2
		if !inPayload {
			continue
		}

		// 3
		pre := rules.PreValidate(ctx, f, raw, rec)
		if pre.Result == record.Rejected {
			if f.Required {
				return nil, badRequest(f.Name, "pre-validation failed: "+pre.Message, labelOf(f, pre.Message))
			}
			log.Warn("optional field rejected by hook", "field", f.Name, "reason", pre.Message)
			unset(rec, prop, known)
			continue
		}

		// 4
		if pre.Result == record.Declined && known {
			out := validate.Field(f, raw, true, p.validationContext(s, rec, payload))
			if !out.Passed {
				if f.Required {
					return nil, badRequest(f.Name, "validation failed: "+out.Message, out.Description)
				}
				log.Warn("optional field invalid", "field", f.Name, "reason", out.Message)
				unset(rec, prop, known)
				continue
			}
		}

		// 5
		parsed := rules.Parse(ctx, f, raw, rec)
		switch parsed.Result {
		case record.Accepted:
			continue
		case record.Rejected:
			if f.Required {
				return nil, internal(f.Name, "parse failed: "+parsed.Message, labelOf(f, parsed.Message))
			}
			log.Warn("optional field parse failed", "field", f.Name, "reason", parsed.Message)
			unset(rec, prop, known)
			continue
		}

		// 6
		if !known {
			log.Debug("payload field is not modeled", "field", f.Name)
			continue
		}

		// 7, 8
		if rej := p.assign(rec, f, prop, raw, log); rej != nil {
			return nil, rej
		}
		if f.MaxField != "" {
			p.assignMax(rec, s, f, payload, log)
		}
	}

	rec.MarkValid()
	return rec, nil
}

func (p *Pipeline) assign(rec *record.Record, f dsl.Field, prop string, raw any, log *slog.Logger) *Rejection {
	v, err := Coerce(f, raw)
	if err != nil {
		rec.Unset(prop)
		if f.Required {
			return internal(f.Name, err.Error(), labelOf(f, "Invalid"))
		}
		log.Warn("optional field coercion failed", "field", f.Name, "error", err)
		return nil
	}
	rec.Set(prop, v)
	return nil
}

// assignMax — парное поле диапазона приводится так же, как основное.
// Его границы уже проверены на шаге 4.
func (p *Pipeline) assignMax(rec *record.Record, s *record.Schema, f dsl.Field, payload map[string]any, log *slog.Logger) {
	raw, ok := lookup(payload, f.MaxField)
	if !ok {
		return
	}
	prop, known := s.PropertyForExternal(f.MaxField)
	if !known {
		log.Warn("max field is not modeled", "field", f.MaxField)
		return
	}
	v, err := Coerce(f, raw)
	if err != nil {
		rec.Unset(prop)
		log.Warn("max field coercion failed", "field", f.MaxField, "error", err)
		return
	}
	rec.Set(prop, v)
}

// order фильтрует поля по окружению и ставит приоритетные свойства вперёд.
func (p *Pipeline) order(s *record.Schema, fields []dsl.Field) []dsl.Field {
	out := make([]dsl.Field, 0, len(fields))
	for _, f := range fields {
		if f.AppliesTo(p.env) {
			out = append(out, f)
		}
	}
	if len(s.Priority) == 0 {
		return out
	}
	rank := func(f dsl.Field) int {
		prop, ok := s.PropertyForExternal(f.Name)
		if !ok {
			return len(s.Priority)
		}
		if i := slices.Index(s.Priority, prop); i >= 0 {
			return i
		}
		return len(s.Priority)
	}
	slices.SortStableFunc(out, func(a, b dsl.Field) int { return rank(a) - rank(b) })
	return out
}

// validationContext: соседи берутся из payload, затем из экземпляра;
// роли — из уже записанного свойства ролей.
func (p *Pipeline) validationContext(s *record.Schema, rec *record.Record, payload map[string]any) validate.Context {
	vctx := validate.Context{
		Bounds:    p.bounds,
		Now:       p.now(),
		BasicOnly: p.basicOnly,
		Siblings: func(name string) (any, bool) {
			if v, ok := lookup(payload, name); ok {
				return v, true
			}
			prop, ok := s.PropertyForExternal(name)
			if !ok {
				return nil, false
			}
			return rec.Get(prop)
		},
	}
	if s.RoleProperty != "" {
		if v, ok := rec.Get(s.RoleProperty); ok && !record.IsCleared(v) {
			roles, err := record.DecodeStringList(v)
			if err == nil {
				vctx.Roles = roles
			}
		}
	}
	return vctx
}

// lookup: JSON null в payload — маркер очистки.
func lookup(payload map[string]any, name string) (any, bool) {
	v, ok := payload[name]
	if !ok {
		return nil, false
	}
	if v == nil {
		return record.Cleared, true
	}
	return v, true
}

func baseValue(rec *record.Record, prop string, known bool) (any, bool) {
	if !known {
		return nil, false
	}
	v, ok := rec.Get(prop)
	if !ok || record.IsCleared(v) {
		return nil, false
	}
	return v, true
}

func unset(rec *record.Record, prop string, known bool) {
	if known {
		rec.Unset(prop)
	}
}

func labelOf(f dsl.Field, msg string) string {
	if msg == "" {
		return f.Label()
	}
	return fmt.Sprintf("%s: %s", f.Label(), msg)
}
