package domain

import "time"

// Confidence grades how a mapping was established.
const (
	// ConfidenceConnected is a mapping written when the account was
	// connected by its owner.
	ConfidenceConnected = 1.0
	// ConfidenceLookup is a mapping recovered through the platform's
	// profile-lookup API.
	ConfidenceLookup = 0.8
)

// Mapping relates a platform-assigned subject ID (sender, recipient,
// page or account ID) to the internal (platform, username) pair.
// A mapping is never silently overwritten; a conflicting write is an
// error, not a merge.
type Mapping struct {
	Platform   string    `json:"platform"`
	SubjectID  string    `json:"subject_id"`
	Username   string    `json:"username"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
