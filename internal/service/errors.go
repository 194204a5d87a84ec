package service

import "errors"

var (
	ErrInvalidSnapshotType = errors.New("invalid snapshot type")
	ErrMissingGameID       = errors.New("gameId is required for pre_game and post_game snapshots")
	ErrInvalidPriority     = errors.New("priority must be between 0 and 2")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAccountNotFound     = errors.New("account not found")
	ErrGameNotFound        = errors.New("no snapshots recorded for game")
	ErrRunIncomplete       = errors.New("run finished with storage errors")
	ErrRunInProgress       = errors.New("a run of this component is already in progress")
)
