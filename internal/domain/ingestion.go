package domain

import "github.com/google/uuid"

// IngestResult summarizes one ingestion request.
type IngestResult struct {
	BatchID           uuid.UUID `json:"batch_id"`
	RowsReceived      int       `json:"rows_received"`
	RowsIngested      int       `json:"rows_ingested"`
	RowsForReview     int       `json:"rows_for_review"`
	SkippedDuplicates int       `json:"skipped_duplicates"`
	Message           string    `json:"message"`
}

// PromotionOutcome reports what the store did with a promotion request.
type PromotionOutcome struct {
	ErrorsRecorded int
	Promoted       int
	// SkippedHashes lists hashes that already existed in the analytic store.
	SkippedHashes []string
}
