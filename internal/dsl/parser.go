package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	entityRe = regexp.MustCompile(`^entity\s+(\w+):$`)
	formRe   = regexp.MustCompile(`^form\s+([\w-]+):$`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	listRe   = regexp.MustCompile(`^(SELECT_LIST|MULTI_SELECTION_LIST)\[(.*)\]$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
)

const defaultForm = "default"

// splitOptionTokens делит "k=v k2='v 2' pattern=^[A-Z0-9 _-]{2,5}$" на токены,
// не рвёт по пробелам внутри кавычек/скобок.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	depth := 0 // [...] и {...} внутри регэкспа

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && depth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && depth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[', '{':
			if !inSingle && !inDouble {
				depth++
			}
			buf = append(buf, r)
		case ']', '}':
			if !inSingle && !inDouble && depth > 0 {
				depth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && depth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// Parse читает DSL из r. path нужен только для сообщений об ошибках.
func Parse(r io.Reader, path string) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	var form *Form
	currentModule := ""
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1], Module: currentModule}
			form = nil
			continue
		}
		if current == nil {
			// всё вне сущности игнорируем
			continue
		}

		if m := formRe.FindStringSubmatch(line); m != nil {
			if _, dup := current.Form(m[1]); dup {
				return nil, fmt.Errorf("%s:%d: duplicate form %q in entity %q", path, lineNo, m[1], current.Name)
			}
			form = &Form{Name: m[1]}
			current.Forms = append(current.Forms, form)
			continue
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%s:%d: cannot parse %q", path, lineNo, line)
		}
		if form == nil {
			// поля до первого form: попадают в форму по умолчанию
			form = &Form{Name: defaultForm}
			current.Forms = append(current.Forms, form)
		}

		f, err := parseField(m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if _, dup := form.Field(f.Name); dup {
			return nil, fmt.Errorf("%s:%d: duplicate field %q in form %q", path, lineNo, f.Name, form.Name)
		}
		form.Fields = append(form.Fields, f)
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

func parseField(name, rawType, tail string) (Field, error) {
	// склейка оборванных типов со скобками: SELECT_LIST[a, b]
	if strings.Contains(rawType, "[") && !strings.Contains(rawType, "]") {
		if idx := strings.Index(tail, "]"); idx >= 0 {
			rawType += tail[:idx+1]
			tail = tail[idx+1:]
		}
	}

	optsRaw := strings.TrimSpace(tail)
	if i := strings.Index(optsRaw, " #"); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}

	f := Field{
		Name:    name,
		Options: map[string]string{},
	}

	if mm := listRe.FindStringSubmatch(rawType); mm != nil {
		f.Type = FieldType(mm[1])
		for _, p := range strings.Split(mm[2], ",") {
			s := strings.Trim(strings.TrimSpace(p), `"'`)
			if s != "" {
				f.Enum = append(f.Enum, s)
			}
		}
	} else {
		f.Type = FieldType(strings.ToUpper(rawType))
	}
	if !f.Type.Known() {
		return Field{}, fmt.Errorf("field %q: unknown type %q", name, rawType)
	}

	for _, tok := range splitOptionTokens(optsRaw) {
		tok = strings.TrimSuffix(strings.TrimSpace(tok), ",")
		if tok == "" {
			continue
		}
		// флаг без значения → "true"
		if !strings.Contains(tok, "=") {
			f.Options[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := unquote(strings.TrimSpace(kv[1]))
		if k != "" {
			f.Options[k] = v
		}
	}

	if err := applyOptions(&f); err != nil {
		return Field{}, err
	}
	if err := f.normalize(); err != nil {
		return Field{}, err
	}
	return f, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// applyOptions раскладывает сырые опции по типизированным полям дескриптора.
func applyOptions(f *Field) error {
	o := f.Options
	f.Required = o["required"] == "true"
	f.Unique = o["unique"] == "true"
	f.Title = o["title"]
	f.Pattern = o["pattern"]
	f.PatternMessage = o["message"]
	f.CustomField = o["custom"]
	f.MaxField = o["maxfield"]

	minLen, hasMin := o["min"]
	maxLen, hasMax := o["max"]
	if hasMin || hasMax {
		b := &Bounds{}
		if hasMin {
			n, err := strconv.Atoi(minLen)
			if err != nil || n < 0 {
				return fmt.Errorf("field %q: bad min=%q", f.Name, minLen)
			}
			b.Min = n
		}
		if hasMax {
			n, err := strconv.Atoi(maxLen)
			if err != nil || n < 0 {
				return fmt.Errorf("field %q: bad max=%q", f.Name, maxLen)
			}
			b.Max = n
		}
		f.Length = b
	}

	for key, dst := range map[string]**float64{"minvalue": &f.MinValue, "maxvalue": &f.MaxValue} {
		raw, ok := o[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("field %q: bad %s=%q", f.Name, key, raw)
		}
		*dst = &v
	}

	if opts, ok := o["options"]; ok {
		if strings.HasPrefix(opts, "@") {
			f.OptionSet = strings.TrimPrefix(opts, "@")
		} else {
			for _, p := range strings.Split(opts, "|") {
				if p = strings.TrimSpace(p); p != "" {
					f.Enum = append(f.Enum, p)
				}
			}
		}
	}
	if env, ok := o["env"]; ok {
		for _, p := range strings.Split(env, "|") {
			if p = strings.TrimSpace(p); p != "" {
				f.Environments = append(f.Environments, strings.ToLower(p))
			}
		}
	}
	return nil
}

// LoadEntities читает один .dsl файл.
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, path)
}

// LoadAll обходит root и собирает каталог из всех *.dsl.
func LoadAll(root string) (Catalog, error) {
	result := make(Catalog)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, e := range ents {
			if e == nil || e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			if e.Module == "" {
				return fmt.Errorf("entity %q in %s has no module — add `module <name>` at the top", e.Name, path)
			}
			fqn := e.FQN()
			if _, exists := result[fqn]; exists {
				return fmt.Errorf("duplicate entity %q in module %q (file: %s)", e.Name, e.Module, path)
			}
			result[fqn] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OptionSource отдаёт значения справочника по имени (см. reference.EnumDirectory).
type OptionSource func(name string) ([]string, bool)

// ResolveOptionSets подставляет options=@name из справочников.
func (c Catalog) ResolveOptionSets(src OptionSource) error {
	for fqn, e := range c {
		for _, form := range e.Forms {
			for i := range form.Fields {
				f := &form.Fields[i]
				if f.OptionSet == "" {
					continue
				}
				vals, ok := src(f.OptionSet)
				if !ok {
					return fmt.Errorf("%s.%s.%s: unknown option set %q", fqn, form.Name, f.Name, f.OptionSet)
				}
				f.Enum = append([]string(nil), vals...)
				if err := f.normalize(); err != nil {
					return fmt.Errorf("%s.%s: %w", fqn, form.Name, err)
				}
			}
		}
	}
	return nil
}
