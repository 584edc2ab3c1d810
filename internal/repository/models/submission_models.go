package models

import "time"

// SubmissionRow is one stored submission. Scores holds the JSON array text.
type SubmissionRow struct {
	ID        int64
	Scores    string
	Average   float64
	CreatedAt time.Time
}

// SubmissionPayload is the wire body accepted by the sheet endpoint.
type SubmissionPayload struct {
	Scores  []int   `json:"scores"`
	Average float64 `json:"average"`
}
