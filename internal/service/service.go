// Package service связывает каталог форм, конвейер приёма и хранилище:
// создание, чтение и частичное обновление записей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rekord/internal/dsl"
	"rekord/internal/entity"
	"rekord/internal/ingest"
	"rekord/internal/metrics"
	"rekord/internal/record"
	"rekord/internal/reference"
	"rekord/internal/store"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownForm   = errors.New("unknown form")
	ErrCorruptRow    = errors.New("row cannot be mapped")
)

// Store — порт хранилища.
type Store interface {
	Get(ctx context.Context, s *record.Schema, id int64) (record.Row, error)
	Insert(ctx context.Context, s *record.Schema, cs record.ChangeSet) (int64, error)
	Update(ctx context.Context, s *record.Schema, id int64, cs record.ChangeSet) error
	Exists(ctx context.Context, s *record.Schema, column string, value any, excludeID int64) (bool, error)
}

var _ Store = (store.Store)(nil)

// Updated — результат частичного обновления.
type Updated struct {
	Record  map[string]any `json:"record"`
	Changed []string       `json:"changed"`
}

type Records struct {
	store    Store
	mapper   *record.Mapper
	logger   *slog.Logger
	metrics  *metrics.Metrics
	env      string
	hashCost int
	now      func() time.Time

	mu      sync.RWMutex
	catalog dsl.Catalog
	roles   *reference.RoleCatalog
}

type Option func(*Records)

func WithLogger(l *slog.Logger) Option { return func(r *Records) { r.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Records) { r.metrics = m } }

// WithEnvironment — окружение развёртывания для фильтра полей форм.
func WithEnvironment(env string) Option { return func(r *Records) { r.env = env } }

func WithHashCost(cost int) Option { return func(r *Records) { r.hashCost = cost } }

func WithClock(now func() time.Time) Option { return func(r *Records) { r.now = now } }

func New(st Store, catalog dsl.Catalog, roles *reference.RoleCatalog, opts ...Option) (*Records, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	r := &Records{
		store:   st,
		catalog: catalog,
		roles:   roles,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.mapper = record.NewMapper(r.logger)
	return r, nil
}

// Reload атомарно подменяет каталог форм и справочник ролей.
func (r *Records) Reload(catalog dsl.Catalog, roles *reference.RoleCatalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = catalog
	r.roles = roles
}

// Catalog — текущий каталог (только чтение).
func (r *Records) Catalog() dsl.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

type call struct {
	def      entity.Definition
	fields   []dsl.Field
	pipeline *ingest.Pipeline
	rules    ingest.Rules
}

func (r *Records) prepare(kind, form string) (call, error) {
	def, ok := entity.Lookup(record.Kind(kind))
	if !ok {
		return call{}, fmt.Errorf("%q: %w", kind, ErrUnknownEntity)
	}
	r.mu.RLock()
	catalog, roles := r.catalog, r.roles
	r.mu.RUnlock()

	fields, ok := catalog.Form(string(def.Kind), form)
	if !ok {
		return call{}, fmt.Errorf("%s/%s: %w", def.Kind, form, ErrUnknownForm)
	}
	opts := []ingest.Option{ingest.WithEnvironment(r.env), ingest.WithClock(r.now)}
	if roles != nil {
		opts = append(opts, ingest.WithAgeBounds(roles))
	}
	return call{
		def:      def,
		fields:   fields,
		pipeline: ingest.New(r.mapper, r.logger, opts...),
		rules: def.Rules(entity.Deps{
			Directory: r.store,
			Roles:     roles,
			HashCost:  r.hashCost,
			Logger:    r.logger,
		}),
	}, nil
}

// Create принимает payload формы поверх пустого экземпляра и сохраняет его.
func (r *Records) Create(ctx context.Context, kind, form string, payload map[string]any) (map[string]any, error) {
	start := time.Now()
	c, err := r.prepare(kind, form)
	if err != nil {
		return nil, err
	}
	s := c.def.Schema
	op := "create"

	base := record.New(s)
	if _, ok := s.Property("createdAt"); ok {
		base.Set("createdAt", r.now().UTC())
	}

	rec, rej := c.pipeline.Ingest(ctx, s, base, payload, c.fields, c.rules)
	if rej != nil {
		r.metrics.ObserveIngest(string(s.Kind), op, "rejected", start)
		r.logger.Info("payload rejected", "kind", s.Kind, "form", form, "status", rej.Status, "field", rej.Field, "reason", rej.Message)
		return nil, rej
	}

	cs := r.mapper.Diff(rec, nil, record.DiffOptions{AllowComplex: true})
	r.metrics.ObserveChangeSet(string(s.Kind), op, len(cs))
	id, err := r.store.Insert(ctx, s, cs)
	if err != nil {
		r.metrics.IncrementStoreError(string(s.Kind), op)
		return nil, fmt.Errorf("create %s: %w", s.Kind, err)
	}
	rec.Set(s.ID, id)

	r.metrics.ObserveIngest(string(s.Kind), op, "accepted", start)
	r.logger.Info("record created", "kind", s.Kind, "id", id, "columns", len(cs))
	return rec.External(), nil
}

// Get читает запись и отдаёт её по внешним именам.
func (r *Records) Get(ctx context.Context, kind string, id int64) (map[string]any, error) {
	def, ok := entity.Lookup(record.Kind(kind))
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownEntity)
	}
	rec, err := r.load(ctx, def.Schema, id)
	if err != nil {
		return nil, err
	}
	return rec.External(), nil
}

// Update применяет payload формы к сохранённой записи и пишет только разницу.
func (r *Records) Update(ctx context.Context, kind string, id int64, form string, payload map[string]any) (*Updated, error) {
	start := time.Now()
	c, err := r.prepare(kind, form)
	if err != nil {
		return nil, err
	}
	s := c.def.Schema
	op := "update"

	baseline, err := r.load(ctx, s, id)
	if err != nil {
		return nil, err
	}

	rec, rej := c.pipeline.Ingest(ctx, s, baseline, payload, c.fields, c.rules)
	if rej != nil {
		r.metrics.ObserveIngest(string(s.Kind), op, "rejected", start)
		r.logger.Info("payload rejected", "kind", s.Kind, "id", id, "form", form, "status", rej.Status, "field", rej.Field, "reason", rej.Message)
		return nil, rej
	}

	cs := r.mapper.Diff(rec, baseline, record.DiffOptions{AllowClear: true, AllowComplex: true})
	r.metrics.ObserveChangeSet(string(s.Kind), op, len(cs))
	if !cs.Empty() {
		if err := r.store.Update(ctx, s, id, cs); err != nil {
			r.metrics.IncrementStoreError(string(s.Kind), op)
			return nil, fmt.Errorf("update %s %d: %w", s.Kind, id, err)
		}
	}

	r.metrics.ObserveIngest(string(s.Kind), op, "accepted", start)
	r.logger.Info("record updated", "kind", s.Kind, "id", id, "columns", cs.Columns())
	return &Updated{Record: rec.External(), Changed: cs.Columns()}, nil
}

func (r *Records) load(ctx context.Context, s *record.Schema, id int64) (*record.Record, error) {
	row, err := r.store.Get(ctx, s, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.metrics.IncrementStoreError(string(s.Kind), "get")
		}
		return nil, fmt.Errorf("get %s %d: %w", s.Kind, id, err)
	}
	rec, ok := r.mapper.FromRow(s, row)
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", s.Kind, id, ErrCorruptRow)
	}
	return rec, nil
}
