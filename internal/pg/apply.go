package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ApplyDDL выполняет map[key]sql в порядке ключей. Ожидается idempotent DDL
// (create ... if not exists).
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			// duplicate_object (42710) / duplicate_table (42P07)
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && (pgErr.Code == "42710" || pgErr.Code == "42P07") {
				logger.Info("DDL skipped, already exists", "key", k, "object", pgErr.ConstraintName, "message", strings.TrimSpace(pgErr.Message))
				continue
			}
			return fmt.Errorf("DDL apply %s: %w", k, err)
		}
		logger.Debug("DDL applied", "key", k)
	}
	return nil
}
