package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"rekord/internal/dsl"
	"rekord/internal/ingest"
	"rekord/internal/record"
	"rekord/internal/validate"
)

const (
	RequestID        = "requestID"
	RequestTitle     = "title"
	RequestDetails   = "details"
	RequestStatus    = "status"
	RequestStart     = "startDate"
	RequestEnd       = "endDate"
	RequestBudgetMin = "budgetMin"
	RequestBudgetMax = "budgetMax"
	RequestGroup     = "groupID"
	RequestCreatedAt = "createdAt"
)

// статус хранится кодом
var statusCodes = map[string]int64{
	"open":        1,
	"in_progress": 2,
	"closed":      3,
	"cancelled":   4,
}

var RequestSchema = record.MustSchema(record.Schema{
	Kind:  Request,
	Table: "requests",
	ID:    RequestID,
	Properties: []record.Property{
		{Name: RequestID, Column: "id", Kind: record.KindInteger},
		{Name: RequestTitle, Column: "title"},
		{Name: RequestDetails, Column: "details"},
		{Name: RequestStatus, Column: "status", Kind: record.KindInteger, Extract: extractStatus, Diff: diffStatus},
		{Name: RequestStart, Column: "start_date", Kind: record.KindTime},
		{Name: RequestEnd, Column: "end_date", Kind: record.KindTime},
		{Name: RequestBudgetMin, Column: "budget_min", Kind: record.KindNumber},
		{Name: RequestBudgetMax, Column: "budget_max", Kind: record.KindNumber},
		{Name: RequestGroup, Column: "group_id", Kind: record.KindInteger},
		{Name: RequestCreatedAt, Column: "created_at", Kind: record.KindTime},
	},
})

// StatusCode — код статуса для колонки.
func StatusCode(status string) (int64, bool) {
	c, ok := statusCodes[strings.ToLower(status)]
	return c, ok
}

// StatusName — обратное к StatusCode.
func StatusName(code int64) (string, bool) {
	for name, c := range statusCodes {
		if c == code {
			return name, true
		}
	}
	return "", false
}

func extractStatus(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	code, ok := validate.PositiveInt(raw)
	if !ok {
		return nil, fmt.Errorf("status code %v", raw)
	}
	name, ok := StatusName(code)
	if !ok {
		return nil, fmt.Errorf("unknown status code %d", code)
	}
	return name, nil
}

func diffStatus(c, b *record.Record, opts record.DiffOptions) (any, bool) {
	cv, ok := c.Get(RequestStatus)
	if !ok {
		return nil, false
	}
	bv, has := b.Get(RequestStatus)
	if record.IsCleared(cv) {
		return record.Cleared, opts.AllowClear && !record.IsCleared(bv)
	}
	if has && bv == cv {
		return nil, false
	}
	code, ok := StatusCode(validate.Text(cv))
	if !ok {
		return nil, false
	}
	return code, true
}

type requestRules struct {
	policy *bluemonday.Policy
}

func newRequestRules(Deps) ingest.Rules {
	return &requestRules{policy: bluemonday.UGCPolicy()}
}

func (r *requestRules) PreValidate(context.Context, dsl.Field, any, *record.Record) record.Verdict {
	return record.Decline()
}

func (r *requestRules) Parse(_ context.Context, f dsl.Field, value any, rec *record.Record) record.Verdict {
	switch f.Name {
	case RequestDetails:
		if record.IsCleared(value) {
			return record.Decline()
		}
		s, ok := value.(string)
		if !ok {
			return record.Reject("details must be text")
		}
		rec.Set(RequestDetails, strings.TrimSpace(r.policy.Sanitize(s)))
		return record.Accept()
	case RequestGroup:
		return assignID(rec, RequestGroup, value)
	}
	return record.Decline()
}
