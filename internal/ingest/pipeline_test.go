package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rekord/internal/dsl"
	"rekord/internal/record"
	"rekord/internal/reference"
)

const memberDSL = `
module test
entity member:
form signup:
  email: EMAIL required pattern=[^@]+@[^@]+
  nickname: TEXT min=3
  password: PASSWORD required
  score: NUMBER
  active: TOGGLE
  dateOfBirth: DATE required
  roles: MULTI_SELECTION_LIST[teen, adult]
  budgetMin: RANGE_SLIDER minValue=0 maxValue=10 maxfield=budgetMax
  budgetMax: RANGE_SLIDER minValue=0 maxValue=10
  audit: TEXT required env=prod
  color: TEXT
`

var memberSchema = record.MustSchema(record.Schema{
	Kind:         "member",
	Table:        "members",
	ID:           "memberID",
	RoleProperty: "roleList",
	Properties: []record.Property{
		{Name: "memberID", Column: "id", Kind: record.KindInteger},
		{Name: "email", Column: "email"},
		{Name: "nickname", Column: "nickname"},
		{Name: "passwordHash", Column: "password_hash", External: "password"},
		{Name: "score", Column: "score", Kind: record.KindNumber},
		{Name: "active", Column: "active", Kind: record.KindBool},
		{Name: "dateOfBirth", Column: "date_of_birth", Kind: record.KindTime},
		{Name: "roleList", Column: "roles", External: "roles", Kind: record.KindList, Equal: record.StringSetEqual},
		{Name: "budgetMin", Column: "budget_min", Kind: record.KindNumber},
		{Name: "budgetMax", Column: "budget_max", Kind: record.KindNumber},
		{Name: "audit", Column: "audit"},
	},
	Priority: []string{"roleList", "dateOfBirth"},
})

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func signupFields(t *testing.T) []dsl.Field {
	t.Helper()
	ents, err := dsl.Parse(strings.NewReader(memberDSL), "member.dsl")
	require.NoError(t, err)
	form, ok := ents[0].Form("signup")
	require.True(t, ok)
	return form.Fields
}

func testPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	roles, err := reference.ParseRoles([]byte(`
roles:
  - {name: teen, order: 1, min_age: 13, max_age: 19}
  - {name: adult, order: 2, min_age: 18, max_age: 120}
`))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithAgeBounds(roles), WithClock(func() time.Time { return testNow }), WithEnvironment("dev")}, opts...)
	return New(record.NewMapper(logger), logger, opts...)
}

func validPayload() map[string]any {
	return map[string]any{
		"email":       "a@b.c",
		"password":    "secret",
		"dateOfBirth": "2010-01-01",
	}
}

type stubRules struct {
	pre   map[string]record.Verdict
	parse map[string]func(rec *record.Record, value any) record.Verdict
	calls []string
}

func (s *stubRules) PreValidate(_ context.Context, f dsl.Field, _ any, _ *record.Record) record.Verdict {
	s.calls = append(s.calls, "pre:"+f.Name)
	if v, ok := s.pre[f.Name]; ok {
		return v
	}
	return record.Decline()
}

func (s *stubRules) Parse(_ context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	s.calls = append(s.calls, "parse:"+f.Name)
	if fn, ok := s.parse[f.Name]; ok {
		return fn(rec, value)
	}
	return record.Decline()
}

func TestIngestHappyPath(t *testing.T) {
	p := testPipeline(t)
	payload := validPayload()
	payload["score"] = "12.5"
	payload["active"] = "TRUE"
	payload["roles"] = []any{"teen"}
	payload["budgetMin"] = 2.0
	payload["budgetMax"] = "8"
	payload["color"] = "teal"

	rec, rej := p.Ingest(context.Background(), memberSchema, nil, payload, signupFields(t), nil)
	require.Nil(t, rej)
	require.True(t, rec.Valid())

	v, _ := rec.Get("passwordHash")
	assert.Equal(t, "secret", v)
	v, _ = rec.Get("score")
	assert.Equal(t, 12.5, v)
	v, _ = rec.Get("active")
	assert.Equal(t, true, v)
	v, _ = rec.Get("roleList")
	assert.Equal(t, []string{"teen"}, v)
	v, _ = rec.Get("dateOfBirth")
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), v)
	v, _ = rec.Get("budgetMax")
	assert.Equal(t, 8.0, v, "max field is coerced with its pair")
	_, ok := rec.Get("color")
	assert.False(t, ok)
}

func TestIngestRequiredAbsence(t *testing.T) {
	p := testPipeline(t)
	payload := validPayload()
	delete(payload, "email")
	payload["nickname"] = "x"
	payload["score"] = "not a number"

	_, rej := p.Ingest(context.Background(), memberSchema, nil, payload, signupFields(t), nil)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Equal(t, "email is Required.", rej.Label)

	base := record.New(memberSchema)
	base.Set("email", "old@b.c")
	rec, rej := p.Ingest(context.Background(), memberSchema, base, payload, signupFields(t), nil)
	require.Nil(t, rej)
	v, _ := rec.Get("email")
	assert.Equal(t, "old@b.c", v, "baseline value satisfies required")
}

func TestIngestRequiredInvalid(t *testing.T) {
	p := testPipeline(t)
	payload := validPayload()
	payload["email"] = "nope"

	_, rej := p.Ingest(context.Background(), memberSchema, nil, payload, signupFields(t), nil)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Equal(t, "email", rej.Field)
	assert.Contains(t, rej.Label, "Invalid")
}

func TestIngestOptionalFailuresDegrade(t *testing.T) {
	p := testPipeline(t)
	base := record.New(memberSchema)
	base.Set("nickname", "keeper")
	base.Set("score", 1.0)

	payload := validPayload()
	payload["nickname"] = "x"
	payload["score"] = "abc"

	rec, rej := p.Ingest(context.Background(), memberSchema, base, payload, signupFields(t), nil)
	require.Nil(t, rej)
	_, ok := rec.Get("nickname")
	assert.False(t, ok, "invalid optional value is left absent")
	_, ok = rec.Get("score")
	assert.False(t, ok, "coercion failure clears the target")

	v, _ := base.Get("nickname")
	assert.Equal(t, "keeper", v, "baseline is not aliased")
}

func TestIngestNullIsClear(t *testing.T) {
	p := testPipeline(t)
	base := record.New(memberSchema)
	base.Set("nickname", "keeper")

	payload := validPayload()
	payload["nickname"] = nil

	rec, rej := p.Ingest(context.Background(), memberSchema, base, payload, signupFields(t), nil)
	require.Nil(t, rej)
	v, _ := rec.Get("nickname")
	assert.True(t, record.IsCleared(v))
}

func TestIngestRequiredCoercionFailureIs500(t *testing.T) {
	p := testPipeline(t)
	payload := validPayload()
	payload["dateOfBirth"] = "garbage"

	_, rej := p.Ingest(context.Background(), memberSchema, nil, payload, signupFields(t), &stubRules{
		pre: map[string]record.Verdict{"dateOfBirth": record.Accept()},
	})
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusInternalServerError, rej.Status)
}

func TestIngestPriorityOrderUsesNewRoles(t *testing.T) {
	p := testPipeline(t)
	base := record.New(memberSchema)
	base.Set("roleList", []string{"teen"})

	payload := validPayload()
	payload["dateOfBirth"] = "1990-01-01"

	_, rej := p.Ingest(context.Background(), memberSchema, base, payload, signupFields(t), nil)
	require.NotNil(t, rej, "stale teen role rejects an adult birth date")
	assert.Contains(t, rej.Message, "Must be older")

	payload["roles"] = []any{"adult"}
	rec, rej := p.Ingest(context.Background(), memberSchema, base, payload, signupFields(t), nil)
	require.Nil(t, rej)
	v, _ := rec.Get("roleList")
	assert.Equal(t, []string{"adult"}, v)
}

func TestIngestHooks(t *testing.T) {
	p := testPipeline(t)

	rules := &stubRules{
		pre: map[string]record.Verdict{"email": record.Reject("Email already taken")},
	}
	_, rej := p.Ingest(context.Background(), memberSchema, nil, validPayload(), signupFields(t), rules)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Equal(t, "email: Email already taken", rej.Label)

	rules = &stubRules{
		parse: map[string]func(*record.Record, any) record.Verdict{
			"password": func(rec *record.Record, v any) record.Verdict {
				rec.Set("passwordHash", "hashed:"+v.(string))
				return record.Accept()
			},
		},
	}
	rec, rej := p.Ingest(context.Background(), memberSchema, nil, validPayload(), signupFields(t), rules)
	require.Nil(t, rej)
	v, _ := rec.Get("passwordHash")
	assert.Equal(t, "hashed:secret", v)
	assert.Equal(t, []string{"pre:dateOfBirth", "parse:dateOfBirth"}, rules.calls[:2], "priority fields go first")

	rules = &stubRules{
		parse: map[string]func(*record.Record, any) record.Verdict{
			"password": func(*record.Record, any) record.Verdict { return record.Reject("hash failed") },
		},
	}
	_, rej = p.Ingest(context.Background(), memberSchema, nil, validPayload(), signupFields(t), rules)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusInternalServerError, rej.Status)
}

func TestIngestEnvironmentFilter(t *testing.T) {
	p := testPipeline(t, WithEnvironment("prod"))
	_, rej := p.Ingest(context.Background(), memberSchema, nil, validPayload(), signupFields(t), nil)
	require.NotNil(t, rej)
	assert.Equal(t, "audit", rej.Field)
}

func TestIngestKindMismatch(t *testing.T) {
	other := record.MustSchema(record.Schema{Kind: "other", ID: "id", Properties: []record.Property{{Name: "id"}}})
	p := testPipeline(t)
	_, rej := p.Ingest(context.Background(), memberSchema, record.New(other), validPayload(), signupFields(t), nil)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusInternalServerError, rej.Status)
}

func TestCoerce(t *testing.T) {
	ids := dsl.Field{Name: "members", Type: dsl.TypeUserIDList}
	v, err := Coerce(ids, []any{1.0, "2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, v)

	_, err = Coerce(ids, "1,2")
	assert.Error(t, err)

	text := dsl.Field{Name: "note", Type: dsl.TypeText}
	v, err = Coerce(text, "true")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	num := dsl.Field{Name: "n", Type: dsl.TypeNumber}
	v, err = Coerce(num, "false")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = Coerce(num, record.Cleared)
	require.NoError(t, err)
	assert.True(t, record.IsCleared(v))
}
