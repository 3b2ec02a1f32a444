package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig is the JSON layout of a calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// LoadCalibration reads weights from a JSON calibration file and merges them
// over DefaultWeights. An empty path yields the defaults. On any read or
// parse failure the defaults are returned together with the error, so callers
// can log and continue.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults", "path", filePath, "error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults", "path", filePath, "error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration returns base with every non-zero field of override applied.
// Neither argument is modified.
func MergeCalibration(base, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	mergeField(&result.Recommend.Members, override.Recommend.Members)
	mergeField(&result.Recommend.Tags, override.Recommend.Tags)

	mergeField(&result.Search.Title, override.Search.Title)
	mergeField(&result.Search.Description, override.Search.Description)
	mergeField(&result.Search.Location, override.Search.Location)
	mergeField(&result.Search.Tags, override.Search.Tags)

	mergeField(&result.ProximityRadiusKm, override.ProximityRadiusKm)

	return &result
}

func mergeField(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults, loaded *Weights) {
	fields := []struct {
		name     string
		def, got float64
	}{
		{"recommend.members", defaults.Recommend.Members, loaded.Recommend.Members},
		{"recommend.tags", defaults.Recommend.Tags, loaded.Recommend.Tags},
		{"search.title", defaults.Search.Title, loaded.Search.Title},
		{"search.description", defaults.Search.Description, loaded.Search.Description},
		{"search.location", defaults.Search.Location, loaded.Search.Location},
		{"search.tags", defaults.Search.Tags, loaded.Search.Tags},
		{"proximity_radius_km", defaults.ProximityRadiusKm, loaded.ProximityRadiusKm},
	}

	var overrides []string
	for _, f := range fields {
		if f.got != f.def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.def, f.got))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
