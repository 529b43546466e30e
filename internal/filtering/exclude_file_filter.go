package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/matchmaker/internal/profile"
)

type excludeFileFilter struct {
	path     string
	disabled bool
	reason   string
	ids      []string
}

// NewExcludeFile creates a filter that removes employees listed in a file,
// one id per line. Blank lines and lines starting with # are ignored.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: strings.TrimSpace(path),
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

// Validate reads the file once so every employer sees the same list.
func (f *excludeFileFilter) Validate() error {
	if f.path == "" {
		return nil
	}

	ids, err := readIDs(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded employees from file: %w", err)
	}
	f.ids = ids
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, _ *profile.Profile, v *profile.Profiles) (*profile.Profiles, Step, error) {
	initial := v.Len()
	if len(f.ids) == 0 {
		return v, Step{Initial: initial, Dropped: 0, Left: v.Len()}, nil
	}

	removed := v.Exclude(f.ids)

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	if f.ids != nil {
		details["ids"] = fmt.Sprint(len(f.ids))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func readIDs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ids := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
