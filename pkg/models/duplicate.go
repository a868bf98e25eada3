package models

import "time"

// DuplicateMatch is a ranked detection result. It is never persisted.
type DuplicateMatch struct {
	CandidateID           string    `json:"candidate_id"`
	DisplayName           string    `json:"display_name"`
	DisplaySecondaryField string    `json:"display_secondary_field"`
	Score                 int       `json:"score"`
	LastUpdatedAt         time.Time `json:"last_updated_at"`
}

// DuplicatePair is one batch-scan hit. MatchA is the older record.
type DuplicatePair struct {
	MatchA DuplicateMatch `json:"match_a"`
	MatchB DuplicateMatch `json:"match_b"`
	Score  int            `json:"score"`
}

// DuplicatePairPage is one page of a batch scan.
type DuplicatePairPage struct {
	Pairs          []DuplicatePair `json:"pairs"`
	Page           int             `json:"page"`
	PageSize       int             `json:"page_size"`
	Total          int             `json:"total"`
	ScannedRecords int             `json:"scanned_records"`
	Cached         bool            `json:"cached"`
}
