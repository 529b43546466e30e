package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/matchmaker/internal/profile"
)

type originFilter struct {
	origins []string
}

// NewOrigin creates a filter that keeps only employees from the given
// origins. An empty list keeps everyone.
func NewOrigin(origins []string) Filter {
	normalized := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.ToUpper(strings.TrimSpace(o)); o != "" {
			normalized = append(normalized, o)
		}
	}
	return &originFilter{origins: normalized}
}

func (f *originFilter) Name() string { return "origin" }

func (f *originFilter) Disable(string) {}

func (f *originFilter) IsEnabled() bool { return true }

func (f *originFilter) Validate() error {
	for _, o := range f.origins {
		if !slices.Contains(profile.Origins, o) {
			return fmt.Errorf("unknown origin %q", o)
		}
	}
	return nil
}

func (f *originFilter) Apply(_ context.Context, _ *profile.Profile, v *profile.Profiles) (*profile.Profiles, Step, error) {
	initial := v.Len()
	if len(f.origins) == 0 {
		return v, Step{Initial: initial, Dropped: 0, Left: v.Len()}, nil
	}

	removed := v.Retain(func(p *profile.Profile) bool {
		return slices.Contains(f.origins, strings.ToUpper(p.Origin))
	})

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}

func (f *originFilter) Status() Status {
	details := map[string]string{}
	if len(f.origins) > 0 {
		details["origins"] = strings.Join(f.origins, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
