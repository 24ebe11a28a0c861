package model

import "time"

// BatchKind identifies which batch job produced a result.
type BatchKind string

const (
	BatchKindFullSync         BatchKind = "FULL_SYNC"
	BatchKindConsistencyCheck BatchKind = "CONSISTENCY_CHECK"
)

// BatchStatus is the overall outcome of a batch run.
type BatchStatus string

const (
	BatchStatusSuccess        BatchStatus = "SUCCESS"
	BatchStatusPartialFailure BatchStatus = "PARTIAL_FAILURE"
	BatchStatusFailed         BatchStatus = "FAILED"
)

// BatchRunResult summarizes a single full-sync or consistency-check run.
type BatchRunResult struct {
	Kind           BatchKind   `json:"type"`
	Status         BatchStatus `json:"status"`
	TotalProcessed int         `json:"total_processed"`
	Added          int         `json:"added"`
	Removed        int         `json:"removed"`
	Errors         int         `json:"errors"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	DurationMs     int64       `json:"duration_ms"`
}

// StatusFor derives SUCCESS or PARTIAL_FAILURE from a per-record error count.
func StatusFor(errors int) BatchStatus {
	if errors > 0 {
		return BatchStatusPartialFailure
	}
	return BatchStatusSuccess
}
