// Package features turns employer/employee profile pairs into numeric rows
// for the regression model. Identifiers, names and origins are never part
// of a row.
package features

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/spigell/matchmaker/internal/profile"
)

const (
	EmployerPrefix = "employer."
	EmployeePrefix = "employee."
)

var ErrFeatureMismatch = errors.New("feature names do not match")

// Names returns the ordered column names of a feature row: the employer's
// attributes followed by the employee's.
func Names() []string {
	attrs := profile.AttributeNames()
	names := make([]string, 0, 2*len(attrs))
	for _, a := range attrs {
		names = append(names, EmployerPrefix+a)
	}
	for _, a := range attrs {
		names = append(names, EmployeePrefix+a)
	}
	return names
}

// Width is len(Names()).
func Width() int {
	return 2 * profile.AttributeCount()
}

// Pair builds one feature row.
func Pair(employer, employee *profile.Profile) []float64 {
	row := make([]float64, 0, Width())
	row = append(row, employer.Vector()...)
	return append(row, employee.Vector()...)
}

// CrossJoin builds one row per employee, in employee order, each joined
// with the same employer.
func CrossJoin(employer *profile.Profile, employees *profile.Profiles) *mat.Dense {
	n := employees.Len()
	if n == 0 {
		return nil
	}

	width := Width()
	data := make([]float64, 0, n*width)
	left := employer.Vector()
	for _, e := range employees.Items {
		data = append(data, left...)
		data = append(data, e.Vector()...)
	}

	return mat.NewDense(n, width, data)
}

// Set is a training set: rows of X with targets y.
type Set struct {
	X *mat.Dense
	Y []float64
	// Skipped counts pairs whose employer or employee id is unknown.
	Skipped int
}

// TrainingSet joins pair records with the profiles they reference. Pairs
// that reference unknown ids are skipped and counted.
func TrainingSet(employers, employees *profile.Profiles, pairs []profile.Pair) (*Set, error) {
	employerIdx := employers.Index()
	employeeIdx := employees.Index()

	width := Width()
	data := make([]float64, 0, len(pairs)*width)
	y := make([]float64, 0, len(pairs))
	skipped := 0

	for _, p := range pairs {
		r, okR := employerIdx[p.EmployerID]
		e, okE := employeeIdx[p.EmployeeID]
		if !okR || !okE {
			skipped++
			continue
		}
		data = append(data, Pair(r, e)...)
		y = append(y, p.Score)
	}

	if len(y) == 0 {
		return nil, fmt.Errorf("no pair matched known profiles (%d skipped)", skipped)
	}

	return &Set{
		X:       mat.NewDense(len(y), width, data),
		Y:       y,
		Skipped: skipped,
	}, nil
}

// Align checks that names, as recorded by a model, equal Names().
func Align(names []string) error {
	expected := Names()
	if len(names) != len(expected) {
		return fmt.Errorf("%w: model has %d features, expected %d", ErrFeatureMismatch, len(names), len(expected))
	}

	var diff []string
	for i := range expected {
		if names[i] != expected[i] {
			diff = append(diff, fmt.Sprintf("#%d %s != %s", i, names[i], expected[i]))
		}
	}
	if len(diff) > 0 {
		return fmt.Errorf("%w: %s", ErrFeatureMismatch, strings.Join(diff, "; "))
	}

	return nil
}
