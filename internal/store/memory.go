package store

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"rekord/internal/record"
)

// Memory — потокобезопасное in-memory хранилище (dev-режим и тесты).
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[int64]record.Row
	seq    map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]map[int64]record.Row),
		seq:    make(map[string]int64),
	}
}

func (m *Memory) Get(_ context.Context, s *record.Schema, id int64) (record.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.tables[s.Table][id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", s.Kind, id, ErrNotFound)
	}
	return copyRow(row), nil
}

func (m *Memory) Insert(_ context.Context, s *record.Schema, cs record.ChangeSet) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := cs.Row()
	if err := m.checkUnique(s, row, 0); err != nil {
		return 0, err
	}
	m.seq[s.Table]++
	id := m.seq[s.Table]
	row[s.IDColumn()] = id

	t, ok := m.tables[s.Table]
	if !ok {
		t = make(map[int64]record.Row)
		m.tables[s.Table] = t
	}
	t[id] = copyRow(row)
	return id, nil
}

func (m *Memory) Update(_ context.Context, s *record.Schema, id int64, cs record.ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.tables[s.Table][id]
	if !ok {
		return fmt.Errorf("%s %d: %w", s.Kind, id, ErrNotFound)
	}
	if cs.Empty() {
		return nil
	}
	delta := cs.Row()
	delete(delta, s.IDColumn())
	if err := m.checkUnique(s, delta, id); err != nil {
		return err
	}
	next := copyRow(cur)
	for col, v := range delta {
		next[col] = v
	}
	m.tables[s.Table][id] = copyRow(next)
	return nil
}

func (m *Memory) Exists(_ context.Context, s *record.Schema, column string, value any, excludeID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exists(s, column, value, excludeID), nil
}

func (m *Memory) exists(s *record.Schema, column string, value any, excludeID int64) bool {
	for id, row := range m.tables[s.Table] {
		if id == excludeID {
			continue
		}
		if v, ok := row[column]; ok && sameValue(v, value) {
			return true
		}
	}
	return false
}

func (m *Memory) checkUnique(s *record.Schema, row record.Row, excludeID int64) error {
	for _, p := range s.Properties {
		if !p.Unique || p.Column == "" {
			continue
		}
		v, ok := row[p.Column]
		if !ok || v == nil {
			continue
		}
		if m.exists(s, p.Column, v, excludeID) {
			return fmt.Errorf("%s.%s: %w", s.Table, p.Column, ErrConflict)
		}
	}
	return nil
}

// sameValue: строки сравниваются без учёта регистра (email, username).
func sameValue(a, b any) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && strings.EqualFold(sa, sb)
	}
	return reflect.DeepEqual(a, b)
}

// copyRow — строки не делят списки и даты с вызывающим.
func copyRow(row record.Row) record.Row {
	out := maps.Clone(row)
	for k, v := range out {
		switch t := v.(type) {
		case []string:
			out[k] = slices.Clone(t)
		case []int64:
			out[k] = slices.Clone(t)
		case []float64:
			out[k] = slices.Clone(t)
		case time.Time:
			out[k] = time.UnixMilli(t.UnixMilli()).UTC()
		}
	}
	return out
}
