package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSessionCompleted = errors.New("session already completed")
	ErrEmptyEvaluation  = errors.New("evaluation response was empty or unparseable")
	ErrSpecMissing      = errors.New("no design spec for problem")
)
