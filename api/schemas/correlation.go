package schemas

import (
	"fmt"
	"strings"
	"time"
)

// -- Correlation Schemas --

// BuildCorrelationID derives the deterministic, directional identifier for a
// link from source to target. Links are not symmetric: A->B and B->A are
// distinct records.
func BuildCorrelationID(sourceID, targetID string) string {
	return fmt.Sprintf("corr:%s->%s", sourceID, targetID)
}

// CorrelationLink is a directed, confidence-scored relationship between two
// unified threats, produced by the correlation matcher.
type CorrelationLink struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`

	// Confidence is the fused score in [0,1] combining vector similarity
	// and lexical overlap.
	Confidence float64 `json:"confidence"`

	// Similarity is the raw vector-similarity input before fusion, kept for
	// audit. Nil when the candidate hit carried no usable score.
	Similarity *float64 `json:"similarity,omitempty"`

	// Reasons enumerate the human-readable justifications for the link.
	Reasons []string `json:"reasons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCorrelationLink constructs a link with its derived ID and creation
// timestamp populated.
func NewCorrelationLink(sourceID, targetID string, confidence float64, similarity *float64, reasons []string) *CorrelationLink {
	return &CorrelationLink{
		ID:         BuildCorrelationID(sourceID, targetID),
		SourceID:   sourceID,
		TargetID:   targetID,
		Confidence: confidence,
		Similarity: similarity,
		Reasons:    reasons,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks link invariants before storage.
func (l *CorrelationLink) Validate() error {
	switch {
	case strings.TrimSpace(l.ID) == "":
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	case strings.TrimSpace(l.SourceID) == "":
		return &ValidationError{Field: "source_id", Reason: "must not be empty"}
	case strings.TrimSpace(l.TargetID) == "":
		return &ValidationError{Field: "target_id", Reason: "must not be empty"}
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be within [0,1]"}
	}
	return nil
}
