package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupsDSL = `
# группы
module social
entity group:
form create:
  name: TEXT required unique min=2 max=40 title="Group name"
  visibility: SELECT_LIST[public, private]
  code: TEXT pattern=^[A-Z0-9 _-]{2,5}$ message='Use capitals'
  budget: RANGE_SLIDER minValue=0 maxValue=100
  note: PARAGRAPH env=dev|Test   # только для отладки
  tags: MULTI_SELECTION_LIST options=@group_tags
form members:
  members: user_id_list
`

func parse(t *testing.T, src string) []*Entity {
	t.Helper()
	ents, err := Parse(strings.NewReader(src), "test.dsl")
	require.NoError(t, err)
	return ents
}

func TestParseFields(t *testing.T) {
	ents := parse(t, groupsDSL)
	require.Len(t, ents, 1)
	e := ents[0]
	assert.Equal(t, "social.group", e.FQN())
	require.Len(t, e.Forms, 2)

	form, ok := e.Form("CREATE")
	require.True(t, ok)

	name, _ := form.Field("name")
	assert.Equal(t, TypeText, name.Type)
	assert.True(t, name.Unique)
	assert.True(t, name.Required)
	assert.Equal(t, "Group name", name.Label())
	assert.Equal(t, &Bounds{Min: 2, Max: 40}, name.Length)

	vis, _ := form.Field("visibility")
	assert.Equal(t, []string{"public", "private"}, vis.Enum)
	assert.Equal(t, "public|private", vis.Pattern)
	assert.True(t, vis.Regexp().MatchString("private"))
	assert.False(t, vis.Regexp().MatchString("privateX"))
	assert.True(t, vis.HasOption("public"))
	assert.False(t, vis.HasOption("Public"))

	code, _ := form.Field("code")
	assert.Equal(t, "Use capitals", code.PatternMessage)
	assert.True(t, code.Regexp().MatchString("AB 1"))
	assert.False(t, code.Regexp().MatchString("ab"))

	budget, _ := form.Field("budget")
	require.NotNil(t, budget.MinValue)
	require.NotNil(t, budget.MaxValue)
	assert.Equal(t, 0.0, *budget.MinValue)
	assert.Equal(t, 100.0, *budget.MaxValue)

	note, _ := form.Field("note")
	assert.Equal(t, []string{"dev", "test"}, note.Environments)
	assert.True(t, note.AppliesTo("DEV"))
	assert.True(t, note.AppliesTo(""))
	assert.False(t, note.AppliesTo("prod"))
	assert.Equal(t, "note", note.Label())

	tags, _ := form.Field("tags")
	assert.Equal(t, "group_tags", tags.OptionSet)
	assert.True(t, tags.Type.IsList())

	members, ok := e.Form("members")
	require.True(t, ok)
	assert.Equal(t, TypeUserIDList, members.Fields[0].Type)
	assert.True(t, members.Fields[0].Type.IsIDList())
}

func TestParseDefaultForm(t *testing.T) {
	ents := parse(t, "module m\nentity thing:\n  title: TEXT\n")
	require.Len(t, ents[0].Forms, 1)
	assert.Equal(t, defaultForm, ents[0].Forms[0].Name)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		src string
		err string
	}{
		"unknown type":    {"module m\nentity a:\n  x: BLOB\n", `unknown type "BLOB"`},
		"duplicate field": {"module m\nentity a:\nform f:\n  x: TEXT\n  x: NUMBER\n", `duplicate field "x"`},
		"duplicate form":  {"module m\nentity a:\nform f:\n  x: TEXT\nform F:\n", `duplicate form "F"`},
		"garbage":         {"module m\nentity a:\n  ???\n", "test.dsl:3: cannot parse"},
		"bad min":         {"module m\nentity a:\n  x: TEXT min=many\n", `bad min="many"`},
		"inverted length": {"module m\nentity a:\n  x: TEXT min=5 max=2\n", "min length 5 exceeds max 2"},
		"bad pattern":     {"module m\nentity a:\n  x: TEXT pattern=(\n", "bad pattern"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.src), "test.dsl")
			assert.ErrorContains(t, err, tc.err)
		})
	}
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "groups.dsl"), []byte(groupsDSL), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "accounts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "accounts", "users.DSL"),
		[]byte("module accounts\nentity user:\nform signup:\n  email: EMAIL required\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("entity ignored:"), 0o644))

	cat, err := LoadAll(root)
	require.NoError(t, err)
	assert.Len(t, cat, 2)

	fields, ok := cat.Form("user", "signup")
	require.True(t, ok)
	assert.Equal(t, "email", fields[0].Name)

	_, ok = cat.Form("user", "edit")
	assert.False(t, ok)
	_, ok = cat.Form("ghost", "signup")
	assert.False(t, ok)
}

func TestLoadAllRejectsBadTrees(t *testing.T) {
	t.Run("no module", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.dsl"), []byte("entity a:\n  x: TEXT\n"), 0o644))
		_, err := LoadAll(root)
		assert.ErrorContains(t, err, "has no module")
	})
	t.Run("duplicate entity", func(t *testing.T) {
		root := t.TempDir()
		body := []byte("module m\nentity a:\n  x: TEXT\n")
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.dsl"), body, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "b.dsl"), body, 0o644))
		_, err := LoadAll(root)
		assert.ErrorContains(t, err, `duplicate entity "a"`)
	})
}

func TestLookup(t *testing.T) {
	cat := Catalog{
		"social.group":   {Module: "social", Name: "group"},
		"accounts.group": {Module: "accounts", Name: "group"},
		"accounts.user":  {Module: "accounts", Name: "user"},
	}
	_, ok := cat.Lookup("", "group")
	assert.False(t, ok, "ambiguous name")

	e, ok := cat.Lookup("Accounts", "GROUP")
	require.True(t, ok)
	assert.Equal(t, "accounts.group", e.FQN())

	e, ok = cat.Lookup("", "User")
	require.True(t, ok)
	assert.Equal(t, "accounts", e.Module)

	_, ok = cat.Lookup("social", "")
	assert.False(t, ok)
}

func TestResolveOptionSets(t *testing.T) {
	cat := Catalog{}
	for _, e := range parse(t, "module social\nentity group:\n  visibility: SELECT_LIST options=@visibility\n") {
		cat[e.FQN()] = e
	}
	sets := map[string][]string{"visibility": {"public", "private"}}
	require.NoError(t, cat.ResolveOptionSets(func(name string) ([]string, bool) {
		v, ok := sets[name]
		return v, ok
	}))

	fields, _ := cat.Form("group", defaultForm)
	assert.Equal(t, []string{"public", "private"}, fields[0].Enum)
	assert.True(t, fields[0].Regexp().MatchString("public"))

	err := cat.ResolveOptionSets(func(string) ([]string, bool) { return nil, false })
	assert.ErrorContains(t, err, `unknown option set "visibility"`)
}
