// Package entity держит конкретные виды сущностей: таблицы свойств, порядок
// приоритета, хуки извлечения/сравнения и правила приёма payload.
package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rekord/internal/dsl"
	"rekord/internal/ingest"
	"rekord/internal/record"
	"rekord/internal/reference"
	"rekord/internal/validate"
)

const (
	User    record.Kind = "user"
	Group   record.Kind = "group"
	Request record.Kind = "request"
)

// Kinds — все виды в стабильном порядке.
var Kinds = []record.Kind{User, Group, Request}

// Directory — порт проверки уникальности (реализуется store.Store).
type Directory interface {
	Exists(ctx context.Context, s *record.Schema, column string, value any, excludeID int64) (bool, error)
}

// Deps — внешние зависимости правил.
type Deps struct {
	Directory Directory
	Roles     *reference.RoleCatalog
	// HashCost — стоимость bcrypt; 0 — bcrypt.DefaultCost
	HashCost int
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) hashCost() int {
	if d.HashCost == 0 {
		return bcrypt.DefaultCost
	}
	return d.HashCost
}

// Definition — вид сущности вместе с её схемой и правилами.
type Definition struct {
	Kind   record.Kind
	Schema *record.Schema
	rules  func(Deps) ingest.Rules
}

// Rules собирает правила приёма с данными зависимостями.
func (d Definition) Rules(deps Deps) ingest.Rules {
	if d.rules == nil {
		return ingest.NoRules{}
	}
	return d.rules(deps)
}

// Lookup — диспетчеризация по виду сущности.
func Lookup(kind record.Kind) (Definition, bool) {
	switch record.Kind(strings.ToLower(string(kind))) {
	case User:
		return Definition{Kind: User, Schema: UserSchema, rules: newUserRules}, true
	case Group:
		return Definition{Kind: Group, Schema: GroupSchema, rules: newGroupRules}, true
	case Request:
		return Definition{Kind: Request, Schema: RequestSchema, rules: newRequestRules}, true
	}
	return Definition{}, false
}

// Schemas — схемы всех видов (для DDL и lint).
func Schemas() []*record.Schema {
	out := make([]*record.Schema, 0, len(Kinds))
	for _, k := range Kinds {
		d, _ := Lookup(k)
		out = append(out, d.Schema)
	}
	return out
}

// Resolver сообщает lint, какие внешние имена моделирует сущность.
func Resolver(entityName string, external string) bool {
	d, ok := Lookup(record.Kind(entityName))
	if !ok {
		return false
	}
	_, ok = d.Schema.PropertyForExternal(external)
	return ok
}

// uniqueness — общий pre-validate хук для unique полей.
type uniqueness struct {
	dir    Directory
	schema *record.Schema
	logger *slog.Logger
}

func (u uniqueness) check(ctx context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	if !f.Unique || u.dir == nil || record.IsCleared(value) {
		return record.Decline()
	}
	prop, ok := u.schema.PropertyForExternal(f.Name)
	if !ok {
		return record.Decline()
	}
	col, ok := u.schema.ColumnFor(prop)
	if !ok {
		return record.Decline()
	}
	id, _ := rec.ID()
	taken, err := u.dir.Exists(ctx, u.schema, col, value, id)
	if err != nil {
		u.logger.Error("uniqueness check failed", "kind", u.schema.Kind, "field", f.Name, "error", err)
		return record.Reject("uniqueness check failed")
	}
	if taken {
		return record.Reject("already taken")
	}
	// проверка формата остаётся общему механизму
	return record.Decline()
}

// assignID — ссылочное поле (ownerID, groupID) хранится как int64.
func assignID(rec *record.Record, prop string, value any) record.Verdict {
	if record.IsCleared(value) {
		rec.Set(prop, value)
		return record.Accept()
	}
	id, ok := validate.PositiveInt(value)
	if !ok {
		return record.Reject(fmt.Sprintf("invalid id %v", value))
	}
	rec.Set(prop, id)
	return record.Accept()
}

func extractStrings(raw any) (any, error) {
	l, err := record.DecodeStringList(raw)
	if err != nil || len(l) == 0 {
		return nil, err
	}
	return l, nil
}

func extractInts(raw any) (any, error) {
	l, err := record.DecodeIntList(raw)
	if err != nil || len(l) == 0 {
		return nil, err
	}
	return l, nil
}

// extractDay нормализует дату к полуночи UTC.
func extractDay(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	t, ok := validate.ParseDate(raw)
	if !ok {
		return nil, fmt.Errorf("not a date: %v", raw)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
