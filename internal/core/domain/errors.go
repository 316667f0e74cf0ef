package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrExtraction is terminal for a document version; the caller maps it
	// to status=failed.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmbedding is non-fatal per fragment during ingestion and degrades
	// retrieval to empty context at query time.
	ErrEmbedding = errors.New("embedding failed")
	ErrRetrieval = errors.New("retrieval failed")
	// ErrCompletion propagates to the chat caller as a hard failure.
	ErrCompletion = errors.New("completion provider failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
