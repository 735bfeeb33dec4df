package model

import "time"

// AuditLog records one request end to end: what came in (redacted), what
// went out, and any business context the handlers attached along the way.
type AuditLog struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Context holds business attributes (operation, pair id, upstream tx
	// hash); persisted as JSON.
	Context map[string]interface{} `json:"context" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
