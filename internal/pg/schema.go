package pg

import (
	"fmt"
	"sort"
	"strings"

	"rekord/internal/record"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// safeTable: «опасное» имя таблицы получает префикс
func safeTable(table string) string {
	t := strings.ToLower(table)
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// qualified — "schema"."table"
func qualified(pgSchema string, s *record.Schema) string {
	return sqlIdent(pgSchema) + "." + sqlIdent(safeTable(s.Table))
}

func mapType(p record.Property) (string, error) {
	switch p.Kind {
	case record.KindString:
		return "text", nil
	case record.KindInteger:
		return "bigint", nil
	case record.KindNumber:
		return "double precision", nil
	case record.KindBool:
		return "boolean", nil
	case record.KindTime:
		return "timestamp with time zone", nil
	case record.KindList, record.KindObject:
		// списки примитивов храним в jsonb
		return "jsonb", nil
	default:
		return "", fmt.Errorf("unknown value kind: %d", p.Kind)
	}
}

// GenerateDDL возвращает карту ключ → SQL. Ключи сортируются так, что схема
// создаётся раньше таблиц, а таблицы раньше индексов.
func GenerateDDL(pgSchema string, schemas []*record.Schema) (map[string]string, error) {
	out := make(map[string]string, 2*len(schemas)+1)
	out["000_schema"] = fmt.Sprintf("create schema if not exists %s;", sqlIdent(pgSchema))

	sorted := append([]*record.Schema(nil), schemas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Table < sorted[j].Table })

	seenTables := map[string]record.Kind{}
	for _, s := range sorted {
		tbl := safeTable(s.Table)
		if other, dup := seenTables[tbl]; dup {
			return nil, fmt.Errorf("%s: table %q already used by %s", s.Kind, tbl, other)
		}
		seenTables[tbl] = s.Kind

		idCol := s.IDColumn()
		if idCol == "" {
			return nil, fmt.Errorf("%s: id property has no column", s.Kind)
		}

		cols := []string{fmt.Sprintf("%s bigserial primary key", sqlIdent(idCol))}
		var indexes strings.Builder
		for _, p := range s.Properties {
			if p.Column == "" || p.Column == idCol {
				continue
			}
			typ, err := mapType(p)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.Kind, p.Name, err)
			}
			def := ""
			if p.Column == "created_at" && p.Kind == record.KindTime {
				def = " not null default now()"
			}
			cols = append(cols, fmt.Sprintf("%s %s%s", sqlIdent(p.Column), typ, def))

			if p.Unique {
				fmt.Fprintf(&indexes, "create unique index if not exists %s on %s(lower(%s::text));\n",
					sqlIdent(tbl+"_"+p.Column+"_uq"), qualified(pgSchema, s), sqlIdent(p.Column))
			}
		}

		out["100_"+tbl] = fmt.Sprintf("create table if not exists %s (\n  %s\n);",
			qualified(pgSchema, s), strings.Join(cols, ",\n  "))
		if indexes.Len() > 0 {
			out["200_"+tbl] = strings.TrimSpace(indexes.String())
		}
	}
	return out, nil
}
