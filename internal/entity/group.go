package entity

import (
	"context"

	"rekord/internal/dsl"
	"rekord/internal/ingest"
	"rekord/internal/record"
)

const (
	GroupID          = "groupID"
	GroupName        = "name"
	GroupDescription = "description"
	GroupVisibility  = "visibility"
	GroupTags        = "tagList"
	GroupMembers     = "memberIDList"
	GroupOwner       = "ownerID"
	GroupCreatedAt   = "createdAt"
)

var GroupSchema = record.MustSchema(record.Schema{
	Kind:  Group,
	Table: "groups",
	ID:    GroupID,
	Properties: []record.Property{
		{Name: GroupID, Column: "id", Kind: record.KindInteger},
		{Name: GroupName, Column: "name", Unique: true},
		{Name: GroupDescription, Column: "description"},
		{Name: GroupVisibility, Column: "visibility"},
		{Name: GroupTags, Column: "tags", Kind: record.KindList, Extract: extractStrings, Equal: record.StringSetEqual},
		// состав группы — множество, порядок и повторы не важны
		{Name: GroupMembers, Column: "member_ids", Kind: record.KindList, Extract: extractInts, Equal: record.IntSetEqual},
		{Name: GroupOwner, Column: "owner_id", Kind: record.KindInteger},
		{Name: GroupCreatedAt, Column: "created_at", Kind: record.KindTime},
	},
})

type groupRules struct {
	unique uniqueness
}

func newGroupRules(d Deps) ingest.Rules {
	return &groupRules{unique: uniqueness{dir: d.Directory, schema: GroupSchema, logger: d.logger()}}
}

func (r *groupRules) PreValidate(ctx context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	return r.unique.check(ctx, f, value, rec)
}

func (r *groupRules) Parse(_ context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	if f.Name == GroupOwner {
		return assignID(rec, GroupOwner, value)
	}
	return record.Decline()
}
