// Package catalog собирает всё, что описывает формы: DSL, справочники опций
// и справочник ролей. Используется при старте и при горячей перезагрузке.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"rekord/internal/dsl"
	"rekord/internal/entity"
	"rekord/internal/reference"
)

// ErrBlocking — в каталоге есть ошибки lint.
var ErrBlocking = errors.New("catalog has blocking issues")

// Sources — где лежат описания.
type Sources struct {
	DSLDir    string `json:"dsl_root"`
	EnumsDir  string `json:"enums_root"`
	RolesPath string `json:"roles_path"`
}

// Merge подставляет пустые пути из def.
func (s Sources) Merge(def Sources) Sources {
	if strings.TrimSpace(s.DSLDir) == "" {
		s.DSLDir = def.DSLDir
	}
	if strings.TrimSpace(s.EnumsDir) == "" {
		s.EnumsDir = def.EnumsDir
	}
	if strings.TrimSpace(s.RolesPath) == "" {
		s.RolesPath = def.RolesPath
	}
	return s
}

// Bundle — загруженный и проверенный набор.
type Bundle struct {
	Forms  dsl.Catalog
	Enums  map[string]reference.EnumDirectory
	Roles  *reference.RoleCatalog
	Issues []dsl.Issue // включая предупреждения
}

// Load читает все источники. При блокирующих ошибках lint возвращает
// Bundle вместе с ErrBlocking, чтобы вызывающий мог показать Issues.
func Load(src Sources) (*Bundle, error) {
	forms, err := dsl.LoadAll(src.DSLDir)
	if err != nil {
		return nil, fmt.Errorf("dsl: %w", err)
	}

	enums := map[string]reference.EnumDirectory{}
	if src.EnumsDir != "" {
		enums, err = reference.LoadEnumCatalog(src.EnumsDir)
		if err != nil {
			return nil, fmt.Errorf("enums: %w", err)
		}
	}
	err = forms.ResolveOptionSets(func(name string) ([]string, bool) {
		d, ok := enums[name]
		if !ok {
			return nil, false
		}
		return d.Codes(), true
	})
	if err != nil {
		return nil, err
	}

	var roles *reference.RoleCatalog
	if src.RolesPath != "" {
		roles, err = reference.LoadRoles(src.RolesPath)
		if err != nil {
			return nil, err
		}
	}

	b := &Bundle{Forms: forms, Enums: enums, Roles: roles, Issues: forms.Lint(entity.Resolver)}
	if blocking := dsl.Blocking(b.Issues); len(blocking) > 0 {
		return b, fmt.Errorf("%w: %d", ErrBlocking, len(blocking))
	}
	return b, nil
}
