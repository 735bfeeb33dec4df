package model

import "time"

// Meta accompanies every gateway response.
type Meta struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

func NewMeta(requestID string) Meta {
	return Meta{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: requestID,
	}
}

type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable *bool          `json:"retryable,omitempty"`
}

// SuccessEnvelope wraps upstream results unchanged in shape.
type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Meta    Meta `json:"meta"`
}

type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
	Meta    Meta      `json:"meta"`
}
