package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rekord/internal/dsl"
	"rekord/internal/record"
	"rekord/internal/reference"
)

func parseForm(t *testing.T, src string) *dsl.Form {
	t.Helper()
	ents, err := dsl.Parse(strings.NewReader("module test\nentity thing:\n"+src), "test.dsl")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	require.Len(t, ents[0].Forms, 1)
	return ents[0].Forms[0]
}

func field(t *testing.T, line string) dsl.Field {
	t.Helper()
	form := parseForm(t, "  "+line+"\n")
	require.Len(t, form.Fields, 1)
	return form.Fields[0]
}

func siblings(m map[string]any) SiblingFunc {
	return func(name string) (any, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestAbsence(t *testing.T) {
	req := field(t, "email: EMAIL required")
	opt := field(t, "bio: PARAGRAPH")

	out := Field(req, nil, false, Context{})
	assert.False(t, out.Passed)
	assert.Equal(t, MsgRequired, out.Message)
	assert.Equal(t, "email is Required.", out.Description)

	out = Field(req, nil, false, Context{BasicOnly: true})
	assert.True(t, out.Passed)
	assert.Equal(t, MsgMissing, out.Message)

	out = Field(opt, nil, false, Context{})
	assert.True(t, out.Passed)
	assert.Equal(t, MsgMissing, out.Message)
}

func TestUniqueImpliesRequired(t *testing.T) {
	f := field(t, "username: TEXT unique")
	assert.True(t, f.Required)
}

func TestClearMarkerPrecedence(t *testing.T) {
	f := field(t, `nickname: TEXT min=3 pattern=[a-z]+`)
	assert.False(t, Field(f, "", true, Context{}).Passed)

	out := Field(f, record.Cleared, true, Context{})
	assert.True(t, out.Passed)
	assert.Equal(t, MsgCleared, out.Message)

	req := field(t, `email: EMAIL required`)
	assert.True(t, Field(req, record.Cleared, true, Context{}).Passed)
}

func TestPatternAndLength(t *testing.T) {
	f := field(t, `code: TEXT min=2 max=4 pattern=[A-Z]+ message="Upper case only"`)

	cases := []struct {
		value string
		msg   string
		ok    bool
	}{
		{"AB", MsgValid, true},
		{"ab", "Upper case only", false},
		{"A", MsgTooShort, false},
		{"ABCDE", MsgTooLong, false},
	}
	for _, tc := range cases {
		out := Field(f, tc.value, true, Context{})
		assert.Equal(t, tc.ok, out.Passed, tc.value)
		assert.Equal(t, tc.msg, out.Message, tc.value)
	}
}

func TestLengthCountsCodePoints(t *testing.T) {
	f := field(t, `name: TEXT max=3`)
	assert.True(t, Field(f, "ёжи", true, Context{}).Passed)
	assert.Equal(t, MsgTooLong, Field(f, "ёжик", true, Context{}).Message)
}

func TestListElements(t *testing.T) {
	f := field(t, `tags: MULTI_SELECTION_LIST[red, green, blue] max=4`)

	assert.Equal(t, MsgNotList, Field(f, "red", true, Context{}).Message)
	assert.Equal(t, MsgValid, Field(f, []any{"red", "blue"}, true, Context{}).Message)
	assert.Equal(t, "[1] Too Long", Field(f, []any{"red", "green"}, true, Context{}).Message)
	assert.Equal(t, "[0] Invalid option", Field(f, []string{"pink"}, true, Context{}).Message)

	p := field(t, `codes: MULTI_SELECTION_LIST[aa, bb] pattern=[a-z]{2}`)
	assert.Equal(t, "[2] Invalid", Field(p, []any{"aa", "bb", "c1"}, true, Context{}).Message)
}

func TestSelectListAutoPattern(t *testing.T) {
	f := field(t, `visibility: SELECT_LIST[public, private]`)
	require.NotEmpty(t, f.Pattern)
	assert.True(t, Field(f, "public", true, Context{}).Passed)
	assert.False(t, Field(f, "secret", true, Context{}).Passed)
}

func TestDateOfBirth(t *testing.T) {
	roles, err := reference.ParseRoles([]byte(`
roles:
  - name: teen
    order: 1
    min_age: 13
    max_age: 19
  - name: adult
    order: 2
    min_age: 18
    max_age: 120
`))
	require.NoError(t, err)

	f := field(t, `dateOfBirth: DATE required`)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := Context{Bounds: roles, Now: now, Roles: []string{"teen"}}
	yearsAgo := func(y float64) time.Time {
		return now.Add(-time.Duration(y * float64(year)))
	}

	out := Field(f, yearsAgo(13), true, ctx)
	assert.True(t, out.Passed, out.Message)

	// 19 лет и один день при max_age 19
	out = Field(f, yearsAgo(19).Add(-24*time.Hour), true, ctx)
	assert.False(t, out.Passed)
	assert.Equal(t, MsgOlder, out.Message)
	assert.Equal(t, "dateOfBirth: Must be older", out.Description)

	out = Field(f, yearsAgo(10), true, ctx)
	assert.Equal(t, MsgOlder, out.Message)

	// старшая роль побеждает
	ctx.Roles = []string{"teen", "adult"}
	assert.True(t, Field(f, yearsAgo(30), true, ctx).Passed)
	assert.Equal(t, MsgOlder, Field(f, yearsAgo(16), true, ctx).Message)

	// без ролей — младшая роль справочника
	ctx.Roles = nil
	assert.True(t, Field(f, yearsAgo(15), true, ctx).Passed)

	assert.Equal(t, MsgInvalidDate, Field(f, "yesterday", true, ctx).Message)
}

func TestPasswordVerify(t *testing.T) {
	f := field(t, `passwordVerify: PASSWORD required`)

	out := Field(f, "abc124", true, Context{Siblings: siblings(map[string]any{"password": "abc123"})})
	assert.Equal(t, MsgPasswordMatch, out.Message)

	out = Field(f, "abc123", true, Context{Siblings: siblings(map[string]any{"password": "abc123"})})
	assert.True(t, out.Passed)
}

func TestURL(t *testing.T) {
	f := field(t, `image: TEXT`)
	assert.True(t, Field(f, "https://cdn.example.com/a.png", true, Context{}).Passed)
	assert.Equal(t, MsgInvalidURL, Field(f, "not a url", true, Context{}).Message)
	assert.Equal(t, MsgInvalidURL, Field(f, "/relative/path", true, Context{}).Message)
}

func TestCustomValue(t *testing.T) {
	form := parseForm(t, `
  gender: SELECT_LIST[male, female, CUSTOM] custom=customGender max=10
  customGender: TEXT
`)
	f, _ := form.Field("gender")

	assert.Equal(t, MsgCustomRequired, Field(f, "CUSTOM", true, Context{}).Message)

	ctx := Context{Siblings: siblings(map[string]any{"customGender": "agender"})}
	assert.True(t, Field(f, "CUSTOM", true, ctx).Passed)

	ctx = Context{Siblings: siblings(map[string]any{"customGender": "much too long value"})}
	assert.Equal(t, MsgCustomInvalid, Field(f, "CUSTOM", true, ctx).Message)

	assert.True(t, Field(f, "male", true, Context{}).Passed)
}

func TestCustomTypeBypasses(t *testing.T) {
	f := field(t, `settings: CUSTOM`)
	assert.True(t, Field(f, map[string]any{"x": 1}, true, Context{}).Passed)
}

func TestDates(t *testing.T) {
	f := field(t, `startDate: DATE`)

	assert.Equal(t, MsgInvalidDate, Field(f, "31/12/2024", true, Context{}).Message)
	assert.True(t, Field(f, "2024-05-01", true, Context{}).Passed)

	ctx := Context{Siblings: siblings(map[string]any{"endDate": "2024-04-01"})}
	assert.Equal(t, MsgEndBeforeStart, Field(f, "2024-05-01", true, ctx).Message)

	ctx.BasicOnly = true
	assert.True(t, Field(f, "2024-05-01", true, ctx).Passed)

	ctx = Context{Siblings: siblings(map[string]any{"endDate": "soon"})}
	assert.Equal(t, MsgInvalidEnd, Field(f, "2024-05-01", true, ctx).Message)

	ctx = Context{Siblings: siblings(map[string]any{"endDate": "2024-05-01"})}
	assert.True(t, Field(f, "2024-05-01", true, ctx).Passed)
}

func TestRangeSliderPairing(t *testing.T) {
	f := field(t, `budgetMin: RANGE_SLIDER minValue=0 maxValue=10 maxfield=budgetMax`)

	assert.Equal(t, MsgOutOfRange, Field(f, 12.0, true, Context{}).Message)

	ctx := Context{Siblings: siblings(map[string]any{"budgetMax": 3.0})}
	assert.Equal(t, MsgMaxOutOfRange, Field(f, 5.0, true, ctx).Message)

	ctx = Context{Siblings: siblings(map[string]any{"budgetMax": 8.0})}
	assert.True(t, Field(f, 5.0, true, ctx).Passed)

	ctx = Context{Siblings: siblings(map[string]any{"budgetMax": 11.0})}
	assert.Equal(t, MsgMaxOutOfRange, Field(f, 5.0, true, ctx).Message)
}

func TestIDList(t *testing.T) {
	f := field(t, `memberIDList: USER_ID_LIST`)

	assert.True(t, Field(f, []any{1.0, 2.0, "3"}, true, Context{}).Passed)
	assert.Equal(t, "[1] Invalid ID", Field(f, []any{1.0, -2.0}, true, Context{}).Message)
	assert.Equal(t, "[0] Invalid ID", Field(f, []any{1.5}, true, Context{}).Message)
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Age(now, now))
	assert.Equal(t, 1, Age(now.Add(-time.Duration(year)), now))
	assert.Equal(t, -1, Age(now.Add(time.Duration(year)/2), now))
}

func TestDateOfBirthInFuture(t *testing.T) {
	roles, err := reference.ParseRoles([]byte(`
roles:
  - {name: anyone, order: 1, min_age: 0, max_age: 120}
`))
	require.NoError(t, err)

	f := field(t, `dateOfBirth: DATE`)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := Context{Bounds: roles, Now: now}

	assert.True(t, Field(f, now.Add(-48*time.Hour), true, ctx).Passed)
	out := Field(f, now.Add(time.Duration(year)/2), true, ctx)
	assert.False(t, out.Passed)
	assert.Equal(t, MsgOlder, out.Message)
}

func TestBrokenPatternRejects(t *testing.T) {
	f := dsl.Field{Name: "code", Type: dsl.TypeText, Pattern: "[a-z"}
	out := Field(f, "ANYTHING!", true, Context{})
	assert.False(t, out.Passed)
	assert.Equal(t, MsgInvalid, out.Message)

	tags := dsl.Field{Name: "tags", Type: dsl.TypeMultiSelectionList, Pattern: "(", Enum: []string{"a"}}
	assert.False(t, Field(tags, []any{"a"}, true, Context{}).Passed)

	// отсутствие и очистка проверяются раньше pattern
	assert.True(t, Field(f, nil, false, Context{}).Passed)
	assert.True(t, Field(f, record.Cleared, true, Context{}).Passed)
}
