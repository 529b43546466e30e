package filtering

import (
	"context"

	"github.com/spigell/matchmaker/internal/profile"
)

type selfFilter struct{}

// NewSelf creates a filter that drops an employee sharing the employer's id.
func NewSelf() Filter {
	return &selfFilter{}
}

func (f *selfFilter) Name() string { return "self" }

func (f *selfFilter) Disable(string) {}

func (f *selfFilter) IsEnabled() bool { return true }

func (f *selfFilter) Validate() error { return nil }

func (f *selfFilter) Apply(_ context.Context, employer *profile.Profile, v *profile.Profiles) (*profile.Profiles, Step, error) {
	initial := v.Len()
	removed := v.Exclude([]string{employer.ID})

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}
