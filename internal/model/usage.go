package model

import "time"

// ReviewUsage records what a verification review call spent.
type ReviewUsage struct {
	Model   string     `json:"model"`
	Tokens  TokenUsage `json:"tokens"`
	Retries int        `json:"retries"`
}

// UsageEvent is one AI usage record emitted per extraction request.
type UsageEvent struct {
	Endpoint         string         `json:"endpoint"`
	Model            string         `json:"model"`
	OperationType    string         `json:"operation_type"`
	Tokens           TokenUsage     `json:"tokens"`
	ElapsedMs        int64          `json:"elapsed_ms"`
	RetryCount       int            `json:"retry_count"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	RequestMetadata  map[string]any `json:"request_metadata,omitempty"`
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
