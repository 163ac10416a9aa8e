// Package store описывает контракт хранилища строк и держит in-memory реализацию.
package store

import (
	"context"
	"errors"

	"rekord/internal/record"
)

// Факты хранилища. Реализации возвращают их (возможно, обёрнутыми),
// сервис переводит в ответы.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store — коллаборатор персистентности. Строки адресуются целочисленным id
// в колонке schema.IDColumn().
type Store interface {
	Get(ctx context.Context, s *record.Schema, id int64) (record.Row, error)
	// Insert создаёт строку и возвращает её id.
	Insert(ctx context.Context, s *record.Schema, cs record.ChangeSet) (int64, error)
	// Update применяет частичную дельту. Пустая дельта — no-op.
	Update(ctx context.Context, s *record.Schema, id int64, cs record.ChangeSet) error
	// Exists ищет строку с column == value, кроме строки excludeID (0 — без исключения).
	Exists(ctx context.Context, s *record.Schema, column string, value any, excludeID int64) (bool, error)
}
