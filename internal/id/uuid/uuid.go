// Package uuid generates the ids attached to requests and analytics events.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 strings, falling back to v4 when the
// v7 source fails.
type Generator struct {
	v7 func() (uuid.UUID, error)
}

// New creates a new Generator.
func New() *Generator {
	return &Generator{v7: uuid.NewV7}
}

// NewID returns a UUID string.
func (g *Generator) NewID() (string, error) {
	id, err := g.v7()
	if err == nil {
		return id.String(), nil
	}
	id, v4Err := uuid.NewRandom()
	if v4Err != nil {
		return "", fmt.Errorf("generate uuid: v7: %v, v4: %w", err, v4Err)
	}
	return id.String(), nil
}

// MustID returns a UUID string and never fails; with both sources failing it
// returns the nil UUID.
func (g *Generator) MustID() string {
	id, err := g.NewID()
	if err != nil {
		return uuid.Nil.String()
	}
	return id
}
