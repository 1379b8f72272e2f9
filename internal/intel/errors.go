package intel

import (
	"errors"
	"fmt"
)

// ErrEmptyContent signals that an extraction strategy produced no usable
// content. It is not a hard failure: the extractor treats it as the cue
// to fall back to the rendered strategy.
var ErrEmptyContent = errors.New("extraction produced no content")

// ErrNotFound is returned by stores when no row matches the key.
var ErrNotFound = errors.New("article not found")

// ExtractionError reports that every strategy and retry for one URL was
// exhausted. The URL keeps processing of sibling URLs unaffected.
type ExtractionError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %d attempts exhausted: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// InferenceError reports an unrecoverable inference failure, carrying the
// number of attempts made before giving up.
type InferenceError struct {
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ValidationError names the first constraint a model response violated.
// It is terminal for the article; the pipeline never retries it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid analysis response: field %q: %s", e.Field, e.Reason)
}
