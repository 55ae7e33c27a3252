// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 strings, so run IDs sort by start time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID v7 string. It falls back to a random v4 when a v7
// cannot be produced.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err == nil {
		return id.String(), nil
	}
	fallback, v4Err := uuid.NewRandom()
	if v4Err != nil {
		return "", fmt.Errorf("generate run id: %w", v4Err)
	}
	return fallback.String(), nil
}
