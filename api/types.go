package api

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Username     string `json:"username" validate:"required,min=1,max=30"`
	Depth        int    `json:"depth" validate:"gte=1,lte=10"`
	MinFollowers *int   `json:"min_followers,omitempty" validate:"omitempty,gte=0"`
}

// Validate checks field constraints. Depth is additionally bounded by the
// service's configured maximum.
func (r *AnalyzeRequest) Validate() error {
	return validate.Struct(r)
}

// ErrorResponse is the body of every non-2xx response. JobID is set when the
// request created a job that was then rejected.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	JobID string `json:"job_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeConflict       = "conflict"
	codeUnavailable    = "unavailable"
	codeInternal       = "internal"
)
