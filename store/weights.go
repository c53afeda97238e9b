package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// ErrBadWeights is returned when a weights file does not hold exactly four
// finite numbers.
var ErrBadWeights = errors.New("bad weights file")

// SaveWeights writes w as a flat JSON array, replacing path atomically.
func SaveWeights(path string, w [4]float64) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %d is %v", ErrBadWeights, i, v)
		}
	}
	b, err := json.Marshal(w[:])
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create weights dir: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename weights: %w", err)
	}
	return nil
}

// LoadWeights reads a file written by SaveWeights.
func LoadWeights(path string) ([4]float64, error) {
	var out [4]float64
	b, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}

	var vals []float64
	if err := json.Unmarshal(b, &vals); err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadWeights, err)
	}
	if len(vals) != len(out) {
		return out, fmt.Errorf("%w: %d values, want %d", ErrBadWeights, len(vals), len(out))
	}
	copy(out[:], vals)
	return out, nil
}
