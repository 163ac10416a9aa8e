package ingest

import (
	"fmt"
	"net/http"
)

// Rejection — структурированный отказ приёма payload.
// Status — HTTP-подобный код, Message — диагностика для лога,
// Label — текст для пользователя.
type Rejection struct {
	Status  int    `json:"status"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Label   string `json:"error"`
}

func (r *Rejection) Error() string {
	if r.Field == "" {
		return fmt.Sprintf("%d: %s", r.Status, r.Message)
	}
	return fmt.Sprintf("%d %s: %s", r.Status, r.Field, r.Message)
}

func badRequest(field, msg, label string) *Rejection {
	return &Rejection{Status: http.StatusBadRequest, Field: field, Message: msg, Label: label}
}

func internal(field, msg, label string) *Rejection {
	return &Rejection{Status: http.StatusInternalServerError, Field: field, Message: msg, Label: label}
}
