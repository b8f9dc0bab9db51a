package ingest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMissingToken means the report carried no bearer credential.
	ErrMissingToken = errors.New("report token is required")
	// ErrUnknownToken means the credential resolved to no registered host.
	ErrUnknownToken = errors.New("invalid report token")
)

// MalformedPayloadError rejects a report wholesale: one bad field means no
// part of the payload is accepted.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: field %s %s", e.Field, e.Reason)
}

// Pipeline stages, recorded on persistence failures so logs identify what
// was lost.
const (
	StageLookup = "lookup"
	StageSample = "sample"
	StageAlert  = "alert"
)

// PersistenceError wraps a storage failure with the host and stage it hit.
// A failure at StageAlert means the sample itself was already stored.
type PersistenceError struct {
	Stage  string
	HostID uuid.UUID
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure at stage %s for host %s: %v", e.Stage, e.HostID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
