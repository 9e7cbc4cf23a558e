package service

import "errors"

var (
	ErrNoScheduleSelected = errors.New("no schedule selected")
	ErrEmptySelection     = errors.New("no seats selected")
	ErrSelectionLimit     = errors.New("selection exceeds reservation limit")
	ErrSeatNotSelectable  = errors.New("seat is not available")
	ErrLockHeld           = errors.New("an active seat lock exists, unlock first")
	ErrNoActiveLock       = errors.New("no active seat lock")
	ErrLockExpired        = errors.New("seat lock expired")

	ErrNoFaceArtifact     = errors.New("face image missing")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")

	ErrQueueCancelled = errors.New("queue slot cancelled by server")
	ErrFlowRevoked    = errors.New("order right revoked by server")
)
