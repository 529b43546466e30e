package generator

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/profile"
)

const (
	DefaultEmployers = 1000
	DefaultEmployees = 50

	EmployersFile = "employers.csv"
	EmployeesFile = "employees.csv"
	ReviewsFile   = "reviews.csv"
)

//go:embed names/*.txt
var namesFS embed.FS

// Generator draws synthetic profiles. Ids are unique across every call on
// the same Generator.
type Generator struct {
	rnd    *rand.Rand
	male   []string
	female []string
	last   []string
	used   map[string]struct{}
}

// New returns a Generator seeded with seed. A zero seed uses the clock.
func New(seed uint64) (*Generator, error) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	male, err := readNames("names/male.txt")
	if err != nil {
		return nil, err
	}
	female, err := readNames("names/female.txt")
	if err != nil {
		return nil, err
	}
	last, err := readNames("names/last.txt")
	if err != nil {
		return nil, err
	}

	return &Generator{
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		male:   male,
		female: female,
		last:   last,
		used:   make(map[string]struct{}),
	}, nil
}

func readNames(path string) ([]string, error) {
	file, err := namesFS.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return names, nil
}

// Profile draws one profile with uniformly random answers.
func (g *Generator) Profile() *profile.Profile {
	first := g.firstName()
	last := g.last[g.rnd.IntN(len(g.last))]

	p := profile.New(g.id(first, last), first, last, profile.Origins[g.rnd.IntN(len(profile.Origins))])
	for _, name := range profile.AttributeNames() {
		p.SetAttribute(name, profile.MinValue+g.rnd.IntN(profile.MaxValue-profile.MinValue+1))
	}
	return p
}

// Profiles draws n profiles.
func (g *Generator) Profiles(n int) *profile.Profiles {
	ps := &profile.Profiles{Items: make([]*profile.Profile, 0, max(n, 0))}
	for range n {
		ps.Items = append(ps.Items, g.Profile())
	}
	return ps
}

func (g *Generator) firstName() string {
	if g.rnd.IntN(2) == 0 {
		return g.male[g.rnd.IntN(len(g.male))]
	}
	return g.female[g.rnd.IntN(len(g.female))]
}

// id derives an identifier from the name, adding a numeric suffix when the
// plain form is taken.
func (g *Generator) id(first, last string) string {
	base := strings.ToLower(first + last)
	candidate := base
	for i := 2; ; i++ {
		if _, taken := g.used[candidate]; !taken {
			break
		}
		candidate = base + strconv.Itoa(i)
	}
	g.used[candidate] = struct{}{}
	return candidate
}

// Pairs scores every employer against every employee.
func Pairs(employers, employees *profile.Profiles) []profile.Pair {
	pairs := make([]profile.Pair, 0, employers.Len()*employees.Len())
	for _, r := range employers.Items {
		for _, e := range employees.Items {
			pairs = append(pairs, profile.NewPair(r, e))
		}
	}
	return pairs
}

type Options struct {
	Employers int
	Employees int
	OutputDir string
	Seed      uint64
}

// Paths returns the employer, employee and review file paths under dir.
func Paths(dir string) (employers, employees, reviews string) {
	return filepath.Join(dir, EmployersFile), filepath.Join(dir, EmployeesFile), filepath.Join(dir, ReviewsFile)
}

type Result struct {
	Employers int
	Employees int
	Pairs     int
}

// Run generates profiles and their pairings and writes the three CSV files.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Employers <= 0 || opts.Employees <= 0 {
		return nil, errors.New("employer and employee counts must be positive")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}

	g, err := New(opts.Seed)
	if err != nil {
		return nil, err
	}

	employersPath, employeesPath, reviewsPath := Paths(opts.OutputDir)

	employers := g.Profiles(opts.Employers)
	if err := profile.SaveFile(employersPath, employers); err != nil {
		return nil, err
	}
	logger.Info("employer profiles written", zap.String("path", employersPath), zap.Int("count", employers.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	employees := g.Profiles(opts.Employees)
	if err := profile.SaveFile(employeesPath, employees); err != nil {
		return nil, err
	}
	logger.Info("employee profiles written", zap.String("path", employeesPath), zap.Int("count", employees.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := Pairs(employers, employees)
	if err := profile.SavePairsFile(reviewsPath, pairs); err != nil {
		return nil, err
	}
	logger.Info("reviews written", zap.String("path", reviewsPath), zap.Int("count", len(pairs)))

	return &Result{Employers: employers.Len(), Employees: employees.Len(), Pairs: len(pairs)}, nil
}
