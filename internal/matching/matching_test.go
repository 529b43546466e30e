package matching

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/profile"
)

// byEmployee returns a fixed score per employee, keyed by the employee's
// first Likert answer (column 12 of the feature row).
type byEmployee map[float64]float64

func (p byEmployee) Predict(x *mat.Dense) ([]float64, error) {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := range rows {
		out[i] = p[x.At(i, profile.AttributeCount())]
	}
	return out, nil
}

type failingPredictor struct{}

func (failingPredictor) Predict(*mat.Dense) ([]float64, error) {
	return nil, errors.New("boom")
}

func person(id string, first int) *profile.Profile {
	p := profile.New(id, "N", "L", "PA")
	for _, name := range profile.AttributeNames() {
		p.SetAttribute(name, 3)
	}
	p.SetAttribute(profile.AttributeNames()[0], first)
	return p
}

func staff() *profile.Profiles {
	return &profile.Profiles{Items: []*profile.Profile{
		person("dan", 1),
		person("bea", 2),
		person("abe", 2),
		person("cat", 3),
		person("eve", 4),
	}}
}

var scores = byEmployee{1: 0.2, 2: 0.8, 3: 1.7, 4: -0.5}

func TestRank(t *testing.T) {
	m, err := New(scores, Options{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	employer := person("boss", 5)
	got, err := m.Rank(context.Background(), employer, staff(), 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	want := []Match{
		{EmployerID: "boss", EmployeeID: "cat", Score: 1, Rank: 1},
		{EmployerID: "boss", EmployeeID: "abe", Score: 0.8, Rank: 2},
		{EmployerID: "boss", EmployeeID: "bea", Score: 0.8, Rank: 3},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected ranking:\n got %+v\nwant %+v", got, want)
	}
}

func TestRankKeepsAllWhenKNonPositive(t *testing.T) {
	m, _ := New(scores, Options{}, nil)

	got, err := m.Rank(context.Background(), person("boss", 5), staff(), 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 matches, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.EmployeeID != "eve" || last.Score != 0 || last.Rank != 5 {
		t.Fatalf("expected clamped eve last, got %+v", last)
	}
}

func TestRankMinScore(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	m, err := New(scores, Options{MinScore: 0.5}, zap.New(core))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := m.Rank(context.Background(), person("boss", 5), staff(), 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches above 0.5, got %+v", got)
	}

	steps := observed.FilterMessage("filter step").All()
	if len(steps) != 1 || steps[0].ContextMap()["dropped"] != int64(2) {
		t.Fatalf("expected min_score step dropping 2, got %+v", steps)
	}
	if steps[0].ContextMap()["employer_id"] != "boss" {
		t.Fatalf("expected employer id on step log, got %+v", steps[0].ContextMap())
	}
}

func TestRankAppliesFilters(t *testing.T) {
	f := filtering.New([]filtering.Filter{filtering.NewSelf()}, nil)
	m, _ := New(scores, Options{Filters: f}, nil)

	employees := staff()
	got, err := m.Rank(context.Background(), person("cat", 5), employees, 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	for _, match := range got {
		if match.EmployeeID == "cat" {
			t.Fatalf("expected employer to be filtered out of its own ranking")
		}
	}
	if len(got) != 4 || employees.Len() != 5 {
		t.Fatalf("unexpected sizes: matches=%d employees=%d", len(got), employees.Len())
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	m, _ := New(scores, Options{}, nil)

	got, err := m.Rank(context.Background(), person("boss", 5), nil, 5)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRankErrors(t *testing.T) {
	if _, err := New(nil, Options{}, nil); err == nil {
		t.Fatalf("expected error for nil predictor")
	}
	if _, err := New(scores, Options{MinScore: 1.5}, nil); err == nil {
		t.Fatalf("expected error for min score out of range")
	}

	m, _ := New(failingPredictor{}, Options{}, nil)
	if _, err := m.Rank(context.Background(), person("boss", 5), staff(), 5); err == nil {
		t.Fatalf("expected predictor error")
	}
	if _, err := m.Rank(context.Background(), nil, staff(), 5); err == nil {
		t.Fatalf("expected error for nil employer")
	}
}

type stubNarrator struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubNarrator) Explain(_ context.Context, employer, employee *profile.Profile, _ float64) (*ai.Rationale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, employee.ID)
	if employee.ID == "abe" {
		return nil, errors.New("quota")
	}
	return &ai.Rationale{Summary: employer.ID + " likes " + employee.ID}, nil
}

func TestRankNarratesKeptMatches(t *testing.T) {
	narrator := &stubNarrator{}
	core, observed := observer.New(zapcore.WarnLevel)
	m, _ := New(scores, Options{Narrator: narrator}, zap.New(core))

	got, err := m.Rank(context.Background(), person("boss", 5), staff(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if !slices.Equal(narrator.calls, []string{"cat", "abe"}) {
		t.Fatalf("expected narration for kept matches only, got %v", narrator.calls)
	}
	if got[0].Rationale != "boss likes cat" {
		t.Fatalf("unexpected rationale: %q", got[0].Rationale)
	}
	if got[1].Rationale != "" {
		t.Fatalf("expected empty rationale on failure, got %q", got[1].Rationale)
	}
	if observed.FilterMessage("rationale failed").Len() != 1 {
		t.Fatalf("expected failure to be logged")
	}
}

func TestRankAll(t *testing.T) {
	m, _ := New(scores, Options{}, nil)

	employers := &profile.Profiles{Items: []*profile.Profile{
		person("zed", 1),
		person("amy", 2),
		person("max", 3),
	}}

	results, err := m.RankAll(context.Background(), employers, staff(), 2, 2)
	if err != nil {
		t.Fatalf("rank all: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, id := range []string{"zed", "amy", "max"} {
		if results[i].EmployerID != id {
			t.Fatalf("expected result %d for %s, got %s", i, id, results[i].EmployerID)
		}
		if len(results[i].Matches) != 2 || results[i].Matches[0].EmployerID != id {
			t.Fatalf("unexpected matches for %s: %+v", id, results[i].Matches)
		}
	}

	if flat := Flatten(results); len(flat) != 6 {
		t.Fatalf("expected 6 flattened matches, got %d", len(flat))
	}
}

func TestRankAllPropagatesErrors(t *testing.T) {
	m, _ := New(failingPredictor{}, Options{}, nil)

	if _, err := m.RankAll(context.Background(), staff(), staff(), 2, 0); err == nil {
		t.Fatalf("expected error")
	}
}
