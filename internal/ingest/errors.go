package ingest

import (
	"fmt"
)

// Stage identifies which pipeline gate rejected a message.
type Stage string

const (
	StageDomain   Stage = "domain_rejected"
	StageAuth     Stage = "auth_rejected"
	StageDecode   Stage = "decode_failed"
	StageStorage  Stage = "storage_failed"
	StageDelivery Stage = "delivery_failed"
)

// RejectError is the single descriptive error a failed pipeline run hands
// back to the transport layer. Delivery failures never produce one; they
// are logged and retried independently of message acceptance.
type RejectError struct {
	Stage Stage
	Err   error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(stage Stage, err error) *RejectError {
	return &RejectError{Stage: stage, Err: err}
}
