package webapi

import "github.com/callaudit/callaudit/internal/models"

// TypeSummary counts records by status for one audit type.
type TypeSummary struct {
	Requested  int `json:"requested"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// SummaryResponse is the aggregate response across all records.
type SummaryResponse struct {
	TotalRecords int                                `json:"totalRecords"`
	ByType       map[models.AuditType]*TypeSummary `json:"byType"`
	// TotalHumanTransfers and TotalCompliant add up every completed
	// recorded-line audit.
	TotalHumanTransfers int     `json:"totalHumanTransfers"`
	TotalCompliant      int     `json:"totalCompliant"`
	ComplianceRate      float64 `json:"complianceRate"`
}

// RerunRequest is the optional body of a rerun. An empty list reruns every
// FAILED type.
type RerunRequest struct {
	AuditTypes []string `json:"auditTypes"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Records int64  `json:"records"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
