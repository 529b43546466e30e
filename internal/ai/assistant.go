package ai

import (
	"context"

	"github.com/spigell/matchmaker/internal/profile"
)

// Rationale is a short human-readable explanation of a match.
type Rationale struct {
	Summary string
	Raw     string
}

type Narrator interface {
	Explain(ctx context.Context, employer, employee *profile.Profile, score float64) (*Rationale, error)
}
