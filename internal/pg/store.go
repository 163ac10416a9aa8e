package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"rekord/internal/record"
	"rekord/internal/store"
)

// код unique_violation
const uniqueViolation = "23505"

// Store — хранилище строк поверх database/sql (драйвер pgx).
type Store struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(db *sql.DB, pgSchema string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, schema: pgSchema, logger: logger}
}

func (s *Store) Get(ctx context.Context, rs *record.Schema, id int64) (record.Row, error) {
	cols := rs.Columns()
	idents := make([]string, len(cols))
	for i, c := range cols {
		idents[i] = sqlIdent(c)
	}
	q := fmt.Sprintf("select %s from %s where %s = $1",
		strings.Join(idents, ", "), qualified(s.schema, rs), sqlIdent(rs.IDColumn()))

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := s.db.QueryRowContext(ctx, q, id).Scan(ptrs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", rs.Kind, id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("select %s %d: %w", rs.Kind, id, err)
	}
	row := make(record.Row, len(cols))
	for i, c := range cols {
		row[c] = dest[i]
	}
	return row, nil
}

func (s *Store) Insert(ctx context.Context, rs *record.Schema, cs record.ChangeSet) (int64, error) {
	cols, args, err := encodeChanges(cs)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", rs.Kind, err)
	}
	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf("insert into %s default values returning %s", qualified(s.schema, rs), sqlIdent(rs.IDColumn()))
	} else {
		holders := make([]string, len(cols))
		for i := range cols {
			holders[i] = fmt.Sprintf("$%d", i+1)
		}
		q = fmt.Sprintf("insert into %s (%s) values (%s) returning %s",
			qualified(s.schema, rs), strings.Join(cols, ", "), strings.Join(holders, ", "), sqlIdent(rs.IDColumn()))
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, s.mapError(rs, "insert", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, rs *record.Schema, id int64, cs record.ChangeSet) error {
	var filtered record.ChangeSet
	for _, c := range cs {
		if c.Column != rs.IDColumn() {
			filtered = append(filtered, c)
		}
	}
	if filtered.Empty() {
		_, err := s.Get(ctx, rs, id)
		return err
	}
	cols, args, err := encodeChanges(filtered)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", rs.Kind, id, err)
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	args = append(args, id)
	q := fmt.Sprintf("update %s set %s where %s = $%d",
		qualified(s.schema, rs), strings.Join(sets, ", "), sqlIdent(rs.IDColumn()), len(args))

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return s.mapError(rs, "update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %d: %w", rs.Kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", rs.Kind, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, rs *record.Schema, column string, value any, excludeID int64) (bool, error) {
	cond := fmt.Sprintf("%s = $1", sqlIdent(column))
	if _, ok := value.(string); ok {
		cond = fmt.Sprintf("lower(%s::text) = lower($1)", sqlIdent(column))
	}
	q := fmt.Sprintf("select exists(select 1 from %s where %s and %s <> $2)",
		qualified(s.schema, rs), cond, sqlIdent(rs.IDColumn()))

	var found bool
	if err := s.db.QueryRowContext(ctx, q, value, excludeID).Scan(&found); err != nil {
		return false, fmt.Errorf("exists %s.%s: %w", rs.Kind, column, err)
	}
	return found, nil
}

func (s *Store) mapError(rs *record.Schema, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		s.logger.Debug("unique violation", "kind", rs.Kind, "constraint", pgErr.ConstraintName)
		return fmt.Errorf("%s %s: %w", op, rs.Kind, store.ErrConflict)
	}
	return fmt.Errorf("%s %s: %w", op, rs.Kind, err)
}

// encodeChanges: маркер очистки → NULL, списки → JSON для jsonb.
func encodeChanges(cs record.ChangeSet) ([]string, []any, error) {
	cols := make([]string, 0, len(cs))
	args := make([]any, 0, len(cs))
	for _, c := range cs {
		v := c.Value
		switch t := v.(type) {
		case []string, []int64, []float64, []any, map[string]any:
			enc, err := record.EncodeList(t)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s: %w", c.Column, err)
			}
			v = enc
		default:
			if record.IsCleared(v) {
				v = nil
			}
		}
		cols = append(cols, sqlIdent(c.Column))
		args = append(args, v)
	}
	return cols, args, nil
}
