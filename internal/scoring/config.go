package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/wanderco/drift/internal/similarity"
)

// CombinedWeights defines the calibrated constants of the combined score.
type CombinedWeights struct {
	SimilarityFloor      float64 `json:"similarity_floor"`       // Floor of the similarity multiplier (default: 0.5)
	FreshnessFloor       float64 `json:"freshness_floor"`        // Floor of the freshness multiplier (default: 0.6)
	EpsilonBase          float64 `json:"epsilon_base"`           // Base exploration probability (default: 0.05)
	EpsilonWildnessScale float64 `json:"epsilon_wildness_scale"` // Extra probability at wildness 100 (default: 0.05)
	MaxRandomBonus       float64 `json:"max_random_bonus"`       // Upper bound of the exploration bonus (default: 0.3)
}

// Weights holds all calibrated scoring weight configurations.
type Weights struct {
	Similarity similarity.Weights `json:"similarity"` // Multi-factor similarity weights
	Combined   CombinedWeights    `json:"combined"`   // Combined score constants
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default scoring weight configuration.
//
// Combined formula: base * quality * (0.5 + 0.5*similarity) *
// (0.6 + 0.4*freshness) * popularity, with an epsilon-greedy bonus of up
// to 0.3 applied with probability 0.05 + 0.05*(wildness/100).
func DefaultWeights() *Weights {
	return &Weights{
		Similarity: similarity.DefaultWeights(),
		Combined: CombinedWeights{
			SimilarityFloor:      0.5,
			FreshnessFloor:       0.6,
			EpsilonBase:          0.05,
			EpsilonWildnessScale: 0.05,
			MaxRandomBonus:       0.3,
		},
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// Partial configurations are merged with defaults for graceful
// degradation. On any error the defaults are returned alongside the error
// so callers can proceed.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only
// non-zero values from the override are applied, allowing partial
// overrides in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.Similarity.Topic != 0 {
		result.Similarity.Topic = override.Similarity.Topic
	}
	if override.Similarity.Domain != 0 {
		result.Similarity.Domain = override.Similarity.Domain
	}
	if override.Similarity.Quality != 0 {
		result.Similarity.Quality = override.Similarity.Quality
	}
	if override.Similarity.ReadingTime != 0 {
		result.Similarity.ReadingTime = override.Similarity.ReadingTime
	}

	if override.Combined.SimilarityFloor != 0 {
		result.Combined.SimilarityFloor = override.Combined.SimilarityFloor
	}
	if override.Combined.FreshnessFloor != 0 {
		result.Combined.FreshnessFloor = override.Combined.FreshnessFloor
	}
	if override.Combined.EpsilonBase != 0 {
		result.Combined.EpsilonBase = override.Combined.EpsilonBase
	}
	if override.Combined.EpsilonWildnessScale != 0 {
		result.Combined.EpsilonWildnessScale = override.Combined.EpsilonWildnessScale
	}
	if override.Combined.MaxRandomBonus != 0 {
		result.Combined.MaxRandomBonus = override.Combined.MaxRandomBonus
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	appendOverride := func(name string, def, got float64) {
		if got != def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, def, got))
		}
	}

	appendOverride("similarity.topic", defaults.Similarity.Topic, loaded.Similarity.Topic)
	appendOverride("similarity.domain", defaults.Similarity.Domain, loaded.Similarity.Domain)
	appendOverride("similarity.quality", defaults.Similarity.Quality, loaded.Similarity.Quality)
	appendOverride("similarity.reading_time", defaults.Similarity.ReadingTime, loaded.Similarity.ReadingTime)
	appendOverride("combined.similarity_floor", defaults.Combined.SimilarityFloor, loaded.Combined.SimilarityFloor)
	appendOverride("combined.freshness_floor", defaults.Combined.FreshnessFloor, loaded.Combined.FreshnessFloor)
	appendOverride("combined.epsilon_base", defaults.Combined.EpsilonBase, loaded.Combined.EpsilonBase)
	appendOverride("combined.epsilon_wildness_scale", defaults.Combined.EpsilonWildnessScale, loaded.Combined.EpsilonWildnessScale)
	appendOverride("combined.max_random_bonus", defaults.Combined.MaxRandomBonus, loaded.Combined.MaxRandomBonus)

	if len(overrides) > 0 {
		slog.Info("loaded scoring calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded scoring calibration (using all defaults)")
	}
}
