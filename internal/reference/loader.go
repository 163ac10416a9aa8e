package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEnumCatalog читает все enum-справочники из папки dir (*.yaml, *.yml).
func LoadEnumCatalog(dir string) (map[string]EnumDirectory, error) {
	result := make(map[string]EnumDirectory)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		// имя справочника — из enumDir.Name или из имени файла
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		result[enumDir.Name] = enumDir
	}
	return result, nil
}

// LoadRoles читает справочник ролей.
func LoadRoles(path string) (*RoleCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoles(data)
}

func ParseRoles(data []byte) (*RoleCatalog, error) {
	var c RoleCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	if len(c.Roles) == 0 {
		return nil, fmt.Errorf("roles: catalog is empty")
	}
	seen := map[string]struct{}{}
	for i := range c.Roles {
		r := &c.Roles[i]
		r.Name = strings.ToLower(strings.TrimSpace(r.Name))
		if r.Name == "" {
			return nil, fmt.Errorf("roles: entry %d has no name", i)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("roles: duplicate role %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if r.MaxAge > 0 && r.MinAge > r.MaxAge {
			return nil, fmt.Errorf("roles: %s: min_age %d exceeds max_age %d", r.Name, r.MinAge, r.MaxAge)
		}
	}
	sort.SliceStable(c.Roles, func(i, j int) bool { return c.Roles[i].Order < c.Roles[j].Order })
	return &c, nil
}

func sortItems(items []EnumItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
}
