// Package matching ranks employees for an employer using a trained model.
package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/features"
	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/profile"
)

// DefaultK is the number of matches kept per employer unless configured.
const DefaultK = 5

const minScoreStep = "min_score"

// Predictor scores feature rows built by features.CrossJoin.
type Predictor interface {
	Predict(x *mat.Dense) ([]float64, error)
}

// Match is one ranked employee for an employer.
type Match struct {
	EmployerID string  `json:"employerId"`
	EmployeeID string  `json:"employeeId"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Result holds the ranking of a single employer in a batch.
type Result struct {
	EmployerID string  `json:"employerId"`
	Matches    []Match `json:"matches"`
}

type Options struct {
	// Filters prune candidates before scoring. Nil keeps everyone.
	Filters *filtering.Filtering
	// Narrator, when set, attaches a rationale to every kept match.
	Narrator ai.Narrator
	// MinScore drops ranked matches scoring below it.
	MinScore float64
}

type Matcher struct {
	predictor Predictor
	filters   *filtering.Filtering
	narrator  ai.Narrator
	minScore  float64
	logger    *zap.Logger
}

func New(predictor Predictor, opts Options, log *zap.Logger) (*Matcher, error) {
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, fmt.Errorf("min score %.3f out of range [0,1]", opts.MinScore)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Matcher{
		predictor: predictor,
		filters:   opts.Filters,
		narrator:  opts.Narrator,
		minScore:  opts.MinScore,
		logger:    log,
	}, nil
}

// Rank scores every remaining candidate against employer and returns the
// best k, highest score first. Equal scores are ordered by employee id.
// k <= 0 keeps all candidates.
func (m *Matcher) Rank(ctx context.Context, employer *profile.Profile, employees *profile.Profiles, k int) ([]Match, error) {
	if employer == nil {
		return nil, errors.New("employer is required")
	}
	if employees == nil {
		employees = &profile.Profiles{}
	}

	log := logger.WithFields(m.logger, logger.MatchFields(employer.ID, "")...)

	candidates := employees
	if m.filters != nil {
		var err error
		candidates, err = m.filters.RunFilters(ctx, employer, employees)
		if err != nil {
			return nil, fmt.Errorf("filter candidates for %s: %w", employer.ID, err)
		}
	}

	x := features.CrossJoin(employer, candidates)
	if x == nil {
		log.Debug("no candidates left")
		return []Match{}, nil
	}

	scores, err := m.predictor.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict for %s: %w", employer.ID, err)
	}
	if len(scores) != candidates.Len() {
		return nil, fmt.Errorf("predict for %s: got %d scores for %d candidates", employer.ID, len(scores), candidates.Len())
	}

	matches := make([]Match, 0, len(scores))
	for i, e := range candidates.Items {
		matches = append(matches, Match{
			EmployerID: employer.ID,
			EmployeeID: e.ID,
			Score:      clamp(scores[i]),
		})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.EmployeeID, b.EmployeeID)
	})

	if m.minScore > 0 {
		initial := len(matches)
		// sorted descending, so everything below the cut is a suffix
		cut := slices.IndexFunc(matches, func(mt Match) bool { return mt.Score < m.minScore })
		if cut >= 0 {
			matches = matches[:cut]
		}
		log.Debug("filter step",
			zap.String("name", minScoreStep),
			zap.Int("initial", initial),
			zap.Int("dropped", initial-len(matches)),
			zap.Int("left", len(matches)),
		)
	}

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	for i := range matches {
		matches[i].Rank = i + 1
	}

	if m.narrator != nil {
		m.narrate(ctx, employer, candidates, matches)
	}

	return matches, nil
}

// narrate fills rationales in place. Failures are logged and leave the
// rationale empty.
func (m *Matcher) narrate(ctx context.Context, employer *profile.Profile, candidates *profile.Profiles, matches []Match) {
	index := candidates.Index()
	for i := range matches {
		if ctx.Err() != nil {
			return
		}

		employee := index[matches[i].EmployeeID]
		rationale, err := m.narrator.Explain(ctx, employer, employee, matches[i].Score)
		if err != nil {
			m.logger.Warn("rationale failed",
				append(logger.MatchFields(employer.ID, matches[i].EmployeeID), zap.Error(err))...,
			)
			continue
		}
		if rationale != nil {
			matches[i].Rationale = rationale.Summary
		}
	}
}

// RankAll ranks every employer against the same employees. At most workers
// employers are processed at once (workers <= 0 means no limit). Results
// follow the employer input order.
func (m *Matcher) RankAll(ctx context.Context, employers, employees *profile.Profiles, k, workers int) ([]Result, error) {
	if employers == nil {
		return nil, nil
	}

	results := make([]Result, employers.Len())

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, employer := range employers.Items {
		g.Go(func() error {
			matches, err := m.Rank(gctx, employer, employees, k)
			if err != nil {
				return err
			}
			results[i] = Result{EmployerID: employer.ID, Matches: matches}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.logger.Info("employers ranked",
		zap.Int("employers", len(results)),
		zap.Int("employees", employees.Len()),
	)

	return results, nil
}

// Flatten concatenates batch results in order.
func Flatten(results []Result) []Match {
	var out []Match
	for _, r := range results {
		out = append(out, r.Matches...)
	}
	return out
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
