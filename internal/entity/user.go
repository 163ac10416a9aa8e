package entity

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"rekord/internal/dsl"
	"rekord/internal/ingest"
	"rekord/internal/record"
	"rekord/internal/reference"
	"rekord/internal/validate"
)

// Свойства пользователя.
const (
	UserID          = "userID"
	UserEmail       = "email"
	UserName        = "username"
	UserDisplayName = "displayName"
	UserPassword    = "passwordHash"
	UserPasswordVer = "passwordVerify"
	UserDateOfBirth = "dateOfBirth"
	UserRoles       = "userRoleList"
	UserWebsite     = "website"
	UserImage       = "image"
	UserGender      = "gender"
	UserCustomGen   = "customGender"
	UserBio         = "bio"
	UserCreatedAt   = "createdAt"
)

// UserSchema: роли обрабатываются раньше даты рождения, потому что
// возрастные границы зависят от старшей роли.
var UserSchema = record.MustSchema(record.Schema{
	Kind:         User,
	Table:        "users",
	ID:           UserID,
	RoleProperty: UserRoles,
	Properties: []record.Property{
		{Name: UserID, Column: "id", Kind: record.KindInteger},
		{Name: UserEmail, Column: "email", Unique: true},
		{Name: UserName, Column: "username", Unique: true},
		{Name: UserDisplayName, Column: "display_name"},
		{Name: UserPassword, Column: "password_hash", External: "password", Secret: true},
		{Name: UserPasswordVer},
		{Name: UserDateOfBirth, Column: "date_of_birth", Kind: record.KindTime, Extract: extractDay},
		{
			Name: UserRoles, Column: "roles", External: "userRoleTokenList", Kind: record.KindList,
			Extract: extractStrings, Equal: record.StringSetEqual, Diff: diffRoles,
		},
		{Name: UserWebsite, Column: "website"},
		{Name: UserImage, Column: "image"},
		{Name: UserGender, Column: "gender"},
		{Name: UserCustomGen, Column: "custom_gender"},
		{Name: UserBio, Column: "bio"},
		{Name: UserCreatedAt, Column: "created_at", Kind: record.KindTime},
	},
	Priority: []string{UserRoles, UserDateOfBirth},
})

// diffRoles пишет список ролей в колонку как JSON, если изменился набор.
func diffRoles(c, b *record.Record, opts record.DiffOptions) (any, bool) {
	cv, ok := c.Get(UserRoles)
	if !ok {
		return nil, false
	}
	bv, has := b.Get(UserRoles)
	if record.IsCleared(cv) {
		return record.Cleared, opts.AllowClear && !record.IsCleared(bv)
	}
	if has && !record.IsCleared(bv) && record.StringSetEqual(cv, bv) {
		return nil, false
	}
	enc, err := record.EncodeList(cv)
	if err != nil {
		return nil, false
	}
	return enc, true
}

type userRules struct {
	unique uniqueness
	roles  *reference.RoleCatalog
	cost   int
}

func newUserRules(d Deps) ingest.Rules {
	return &userRules{
		unique: uniqueness{dir: d.Directory, schema: UserSchema, logger: d.logger()},
		roles:  d.Roles,
		cost:   d.hashCost(),
	}
}

func (r *userRules) PreValidate(ctx context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	return r.unique.check(ctx, f, value, rec)
}

func (r *userRules) Parse(_ context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	switch f.Name {
	case "password":
		if record.IsCleared(value) {
			return record.Reject("password cannot be cleared")
		}
		plain := validate.Text(value)
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), r.cost)
		if err != nil {
			return record.Reject("hash password: " + err.Error())
		}
		rec.Set(UserPassword, string(hash))
		return record.Accept()

	case UserPasswordVer:
		// только для проверки, не хранится
		return record.Accept()

	case "userRoleTokenList":
		if r.roles == nil || record.IsCleared(value) {
			return record.Decline()
		}
		tokens, err := record.DecodeStringList(value)
		if err != nil {
			return record.Reject(err.Error())
		}
		out := make([]string, 0, len(tokens))
		for _, t := range tokens {
			name, ok := r.roles.Normalize(t)
			if !ok {
				return record.Reject(fmt.Sprintf("unknown role %q", t))
			}
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
		rec.Set(UserRoles, out)
		return record.Accept()
	}
	return record.Decline()
}

// CheckPassword сверяет пароль с сохранённым хешем пользователя.
func CheckPassword(rec *record.Record, plain string) bool {
	v, ok := rec.Get(UserPassword)
	if !ok {
		return false
	}
	hash, ok := v.(string)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
