package schemas

import (
	"errors"
	"fmt"
)

// -- Error Taxonomy --
//
// Four failure classes cross component boundaries. Per-item failures
// (missing key, validation) are counted and skipped by the stage loop;
// collaborator failures abort the whole stage; a dimension mismatch skips
// the correlation query for the affected threat only.

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrMissingKey              = errors.New("missing natural key")
	ErrValidation              = errors.New("validation failed")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrDimensionMismatch       = errors.New("embedding dimension mismatch")
)

// MissingKeyError reports a normalization input that lacks its mandatory
// natural key (advisory id, indicator value, or feed identity).
type MissingKeyError struct {
	Source string // Payload shape being normalized: "nvd", "otx", "rss".
	Key    string // Human name of the absent key.
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s payload missing %s", e.Source, e.Key)
}

func (e *MissingKeyError) Unwrap() error { return ErrMissingKey }

// ValidationError reports a canonical entity that fails its invariants.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CollaboratorError wraps a store/index/embedding failure so stages can
// distinguish stage-level aborts from per-item errors.
type CollaboratorError struct {
	Name string // "store", "vector index", "embeddings", feed name.
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Name, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return ErrCollaboratorUnavailable }

// DimensionError reports an embedding vector whose length disagrees with the
// configured dimension.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }
