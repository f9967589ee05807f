package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyResponse = errors.New("empty response from model")
	ErrRetrieval     = errors.New("retrieval failed")
	ErrGeneration    = errors.New("generation failed")
)

// GenerationError reports a failed generation call. StatusCode is the
// upstream HTTP status, or 0 when the engine could not be reached.
type GenerationError struct {
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", ErrGeneration, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrGeneration, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}
