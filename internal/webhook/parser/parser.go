// Package parser turns heterogeneous platform webhook envelopes into
// canonical events. Each platform is a variant registered here; adding
// a platform means adding a variant, not another branch.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
)

// Outcome classifies what a payload turned out to be.
type Outcome int

const (
	// OutcomeEvents means at least one canonical event was extracted.
	OutcomeEvents Outcome = iota
	// OutcomeIgnored means the payload parsed but matched no known
	// shape, or contained only echoes. Still acked upstream.
	OutcomeIgnored
	// OutcomeMalformed means the body was not valid JSON. Still acked.
	OutcomeMalformed
)

// ParsedEvent is an extracted occurrence whose recipient subject ID
// has not been resolved to an account yet.
type ParsedEvent struct {
	Type               eventdomain.EventType
	Platform           string
	RecipientSubjectID string
	SenderSubjectID    string
	SenderDisplayName  string
	SourceContextName  string
	ExternalID         string
	Text               string
	Timestamp          time.Time
	Raw                json.RawMessage
}

// Result of parsing one webhook body.
type Result struct {
	Outcome Outcome
	Events  []*ParsedEvent
}

type platformParser func(body []byte) Result

var parsers = map[string]platformParser{
	"instagram": func(body []byte) Result { return parseMeta("instagram", body) },
	"facebook":  func(body []byte) Result { return parseMeta("facebook", body) },
	"twitter":   parseTwitter,
}

// Supported reports whether a platform has a registered variant.
func Supported(platform string) bool {
	_, ok := parsers[platform]
	return ok
}

// Platforms lists every registered platform variant.
func Platforms() []string {
	out := make([]string, 0, len(parsers))
	for name := range parsers {
		out = append(out, name)
	}
	return out
}

// Parse dispatches a webhook body to the platform's variant.
func Parse(platform string, body []byte) Result {
	p, ok := parsers[platform]
	if !ok {
		return Result{Outcome: OutcomeIgnored}
	}
	if !json.Valid(body) {
		return Result{Outcome: OutcomeMalformed}
	}
	return p(body)
}

// synthesizeExternalID builds a deterministic ID for platforms that
// deliver an occurrence without a native one, so redelivery of the
// same webhook cannot create a duplicate.
func synthesizeExternalID(senderSubjectID string, ts time.Time, text string) string {
	if len(text) > 64 {
		text = text[:64]
	}
	composite := fmt.Sprintf("%s|%d|%s", senderSubjectID, ts.Unix(), text)
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}
