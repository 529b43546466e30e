package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/spigell/matchmaker/internal/features"
)

// FormatVersion is bumped whenever the artifact layout changes.
const FormatVersion = 1

// Artifact is a fitted model as stored on disk.
type Artifact struct {
	Version     int          `json:"version"`
	Kind        string       `json:"kind"`
	Features    []string     `json:"features"`
	TrainedAt   time.Time    `json:"trainedAt"`
	Samples     int          `json:"samples"`
	Metrics     *Metrics     `json:"metrics,omitempty"`
	KernelRidge *KernelRidge `json:"kernelRidge,omitempty"`
	Linear      *Linear      `json:"linear,omitempty"`
}

// NewArtifact wraps a fitted regressor.
func NewArtifact(r Regressor, samples int, metrics *Metrics) (*Artifact, error) {
	a := &Artifact{
		Version:   FormatVersion,
		Kind:      r.Kind(),
		Features:  features.Names(),
		TrainedAt: time.Now().UTC(),
		Samples:   samples,
		Metrics:   metrics,
	}

	switch m := r.(type) {
	case *KernelRidge:
		a.KernelRidge = m
	case *Linear:
		a.Linear = m
	default:
		return nil, fmt.Errorf("unsupported regressor %T", r)
	}

	return a, nil
}

// Regressor returns the fitted model held by the artifact.
func (a *Artifact) Regressor() (Regressor, error) {
	switch a.Kind {
	case KindRBF:
		if a.KernelRidge == nil {
			return nil, ErrNotFitted
		}
		return a.KernelRidge, nil
	case KindLinear:
		if a.Linear == nil {
			return nil, ErrNotFitted
		}
		return a.Linear, nil
	default:
		return nil, fmt.Errorf("unsupported model kind: %s", a.Kind)
	}
}

func Save(path string, a *Artifact) error {
	if a == nil {
		return errors.New("artifact is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Load reads an artifact and checks that it can serve the current feature
// layout.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}

	if a.Version != FormatVersion {
		return nil, fmt.Errorf("model %s has format version %d, expected %d", path, a.Version, FormatVersion)
	}

	if err := features.Align(a.Features); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}

	if a.KernelRidge != nil {
		if err := a.KernelRidge.checkShape(len(a.Features)); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		a.KernelRidge.prepare()
	}

	if _, err := a.Regressor(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}

	return &a, nil
}
