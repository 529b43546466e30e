package features

import (
	"errors"
	"testing"

	"github.com/spigell/matchmaker/internal/profile"
)

func uniform(id string, v int) *profile.Profile {
	p := profile.New(id, "A", "B", "PA")
	for _, name := range profile.AttributeNames() {
		p.SetAttribute(name, v)
	}
	return p
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != Width() || Width() != 24 {
		t.Fatalf("expected 24 names, got %d", len(names))
	}
	if names[0] != "employer.likert.valuesFriendship" {
		t.Fatalf("unexpected first name %q", names[0])
	}
	if names[12] != "employee.likert.valuesFriendship" {
		t.Fatalf("unexpected employee start %q", names[12])
	}
}

func TestCrossJoin(t *testing.T) {
	employer := uniform("r", 1)
	employees := &profile.Profiles{Items: []*profile.Profile{uniform("a", 2), uniform("b", 5)}}

	x := CrossJoin(employer, employees)
	rows, cols := x.Dims()
	if rows != 2 || cols != 24 {
		t.Fatalf("unexpected dims %dx%d", rows, cols)
	}

	if x.At(1, 0) != 1 || x.At(1, 12) != 5 || x.At(0, 23) != 2 {
		t.Fatalf("unexpected values: %v %v %v", x.At(1, 0), x.At(1, 12), x.At(0, 23))
	}

	if CrossJoin(employer, &profile.Profiles{}) != nil {
		t.Fatalf("expected nil matrix for no employees")
	}
}

func TestTrainingSetSkipsUnknownIDs(t *testing.T) {
	employers := &profile.Profiles{Items: []*profile.Profile{uniform("r", 1)}}
	employees := &profile.Profiles{Items: []*profile.Profile{uniform("e", 3)}}
	pairs := []profile.Pair{
		{EmployerID: "r", EmployeeID: "e", Score: 0.5},
		{EmployerID: "r", EmployeeID: "ghost", Score: 0.1},
	}

	set, err := TrainingSet(employers, employees, pairs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Skipped != 1 || len(set.Y) != 1 || set.Y[0] != 0.5 {
		t.Fatalf("unexpected set: skipped=%d y=%v", set.Skipped, set.Y)
	}

	if _, err := TrainingSet(employers, employees, pairs[1:]); err == nil {
		t.Fatalf("expected error when nothing joins")
	}
}

func TestAlign(t *testing.T) {
	if err := Align(Names()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := Names()[:3]
	if err := Align(short); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}

	swapped := Names()
	swapped[0], swapped[1] = swapped[1], swapped[0]
	if err := Align(swapped); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
