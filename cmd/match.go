package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/generator"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/matching"
	"github.com/spigell/matchmaker/internal/profile"
	"github.com/spigell/matchmaker/internal/store"
)

var errNoInput = errors.New("no employer selected")

// stdinRequest is the document accepted on stdin.
type stdinRequest struct {
	Employer  map[string]any   `json:"employer"`
	Employees []map[string]any `json:"employees"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank employees for one employer, for every employer, or for a JSON document on stdin",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, map[string]string{
			"top-k":        "match.top-k",
			"min-score":    "match.min-score",
			"exclude-file": "match.exclude-file",
			"origin":       "match.origins",
			"workers":      "match.workers",
			"store":        "store.path",
			"model":        "train.model",
		})
	},
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("employer", "e", "", "employer id from employers.csv")
	matchCmd.Flags().BoolP("all", "a", false, "rank employees for every employer in employers.csv")
	matchCmd.Flags().IntP("top-k", "k", matching.DefaultK, "matches to keep per employer; 0 keeps all")
	matchCmd.Flags().Float64("min-score", 0, "drop matches scoring below this value")
	matchCmd.Flags().String("exclude-file", "", "file with employee ids to skip, one per line")
	matchCmd.Flags().StringSlice("origin", nil, "only consider employees from these origins")
	matchCmd.Flags().Int("workers", 4, "employers ranked concurrently with --all")
	matchCmd.Flags().String("store", "", "SQLite file to persist the ranked matches")
	matchCmd.Flags().String("model", "", "model artifact path (default <data-dir>/model.json)")
}

func match(cmd *cobra.Command) {
	ctx := context.Background()
	lg, config := setup("match")

	matcher, err := newMatcher(ctx, config, lg)
	if err != nil {
		lg.Fatal("preparing the matcher", zap.Error(err))
	}

	var results []matching.Result

	switch {
	case flagSet(cmd, "all"):
		results, err = matchAll(ctx, matcher, config, lg)
	case cmd.Flag("employer").Value.String() != "":
		results, err = matchOne(ctx, matcher, config, cmd.Flag("employer").Value.String())
	case stdinPiped():
		results, err = matchStdin(ctx, matcher, config, os.Stdin)
	default:
		results, err = matchPicked(ctx, matcher, config)
	}
	if err != nil {
		if errors.Is(err, errNoInput) {
			lg.Info("exiting", zap.String("reason", err.Error()))
			return
		}
		lg.Fatal("ranking", zap.Error(err))
	}

	if config.Store != nil && config.Store.Path != "" {
		if err := saveRun(ctx, config.Store.Path, results, lg); err != nil {
			lg.Fatal("storing matches", zap.Error(err))
		}
	}

	pretty, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		lg.Fatal("encoding matches", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

func loadData(config *Config) (employers, employees *profile.Profiles, err error) {
	employersPath, employeesPath, _ := generator.Paths(config.DataDir)

	employers, err = profile.LoadFile(employersPath)
	if err != nil {
		return nil, nil, err
	}
	employees, err = profile.LoadFile(employeesPath)
	if err != nil {
		return nil, nil, err
	}
	return employers, employees, nil
}

func matchAll(ctx context.Context, matcher *matching.Matcher, config *Config, lg *zap.Logger) ([]matching.Result, error) {
	employers, employees, err := loadData(config)
	if err != nil {
		return nil, err
	}

	lg.Info("ranking every employer",
		zap.Int("employers", employers.Len()),
		zap.Int("employees", employees.Len()),
		zap.Int("workers", config.Match.Workers),
	)

	return matcher.RankAll(ctx, employers, employees, config.Match.TopK, config.Match.Workers)
}

func matchOne(ctx context.Context, matcher *matching.Matcher, config *Config, employerID string) ([]matching.Result, error) {
	employers, employees, err := loadData(config)
	if err != nil {
		return nil, err
	}

	employer := employers.FindByID(employerID)
	if employer == nil {
		return nil, fmt.Errorf("employer %s not found in %s", employerID, config.DataDir)
	}

	return rankOne(ctx, matcher, config, employer, employees)
}

func matchStdin(ctx context.Context, matcher *matching.Matcher, config *Config, r io.Reader) ([]matching.Result, error) {
	var req stdinRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding stdin: %w", err)
	}
	if req.Employer == nil {
		return nil, errors.New("stdin document has no employer")
	}

	employer, err := profile.Decode(req.Employer)
	if err != nil {
		return nil, fmt.Errorf("employer: %w", err)
	}

	employees, err := profile.DecodeAll(req.Employees)
	if err != nil {
		return nil, fmt.Errorf("employees%w", err)
	}

	return rankOne(ctx, matcher, config, employer, employees)
}

func matchPicked(ctx context.Context, matcher *matching.Matcher, config *Config) ([]matching.Result, error) {
	employers, employees, err := loadData(config)
	if err != nil {
		return nil, err
	}

	employer, err := pickEmployer(employers)
	if err != nil {
		return nil, err
	}

	return rankOne(ctx, matcher, config, employer, employees)
}

func rankOne(ctx context.Context, matcher *matching.Matcher, config *Config, employer *profile.Profile, employees *profile.Profiles) ([]matching.Result, error) {
	matches, err := matcher.Rank(ctx, employer, employees, config.Match.TopK)
	if err != nil {
		return nil, err
	}
	return []matching.Result{{EmployerID: employer.ID, Matches: matches}}, nil
}

func pickEmployer(employers *profile.Profiles) (*profile.Profile, error) {
	if employers.Len() == 0 {
		return nil, errNoInput
	}

	items := make([]string, 0, employers.Len())
	for _, e := range employers.Items {
		items = append(items, fmt.Sprintf("%s / %s / %s", e.ID, e.FullName(), e.Origin))
	}

	employerPrompt := promptui.Select{
		Label: "Choose an employer and press ENTER",
		Items: items,
		Size:  10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}

	index, _, err := employerPrompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil, errNoInput
		}
		return nil, err
	}

	return employers.Items[index], nil
}

func saveRun(ctx context.Context, path string, results []matching.Result, lg *zap.Logger) error {
	s, err := store.Open(ctx, path, lg)
	if err != nil {
		return err
	}
	defer s.Close()

	runID := uuid.NewString()
	if err := s.SaveRun(ctx, runID, matching.Flatten(results)); err != nil {
		return err
	}

	logger.WithRun(lg, runID).Info("run saved", zap.String("store", path), zap.Int("employers", len(results)))
	return nil
}

func stdinPiped() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}
