package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the tunables of the field engine and the services
// around it. Omitted fields fall back to the defaults of the Get* methods.
type TuningConfig struct {
	// Engine params
	ConvolutionMethod    *string  `json:"convolution_method,omitempty"` // "auto", "direct" or "fft"
	LaplaceTolerance     *float64 `json:"laplace_tolerance,omitempty"`
	LaplaceMaxIterations *int     `json:"laplace_max_iterations,omitempty"`
	DistPoints           *int     `json:"dist_points,omitempty"` // 0 picks the resolution from the sample count
	InclinationBins      *int     `json:"inclination_bins,omitempty"`
	RowShiftMinFreedom   *int     `json:"row_shift_min_freedom,omitempty"`

	// Service params
	DBPath         *string `json:"db_path,omitempty"`
	ListenAddr     *string `json:"listen_addr,omitempty"`
	ChartMaxPoints *int    `json:"chart_max_points,omitempty"` // heatmap cells in HTML charts
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default.
func DefaultTuningConfig() *TuningConfig {
	var c TuningConfig
	return &TuningConfig{
		ConvolutionMethod:    ptrString(c.GetConvolutionMethod()),
		LaplaceTolerance:     ptrFloat64(c.GetLaplaceTolerance()),
		LaplaceMaxIterations: ptrInt(c.GetLaplaceMaxIterations()),
		DistPoints:           ptrInt(c.GetDistPoints()),
		InclinationBins:      ptrInt(c.GetInclinationBins()),
		RowShiftMinFreedom:   ptrInt(c.GetRowShiftMinFreedom()),
		DBPath:               ptrString(c.GetDBPath()),
		ListenAddr:           ptrString(c.GetListenAddr()),
		ChartMaxPoints:       ptrInt(c.GetChartMaxPoints()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/surface/field/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConvolutionMethod != nil {
		switch *c.ConvolutionMethod {
		case "", "auto", "direct", "fft":
		default:
			return fmt.Errorf("convolution_method must be auto, direct or fft, got %q", *c.ConvolutionMethod)
		}
	}

	if c.LaplaceTolerance != nil && !(*c.LaplaceTolerance > 0) {
		return fmt.Errorf("laplace_tolerance must be positive, got %g", *c.LaplaceTolerance)
	}

	if c.LaplaceMaxIterations != nil && *c.LaplaceMaxIterations < 1 {
		return fmt.Errorf("laplace_max_iterations must be at least 1, got %d", *c.LaplaceMaxIterations)
	}

	if c.DistPoints != nil && *c.DistPoints < 0 {
		return fmt.Errorf("dist_points must be non-negative, got %d", *c.DistPoints)
	}

	if c.InclinationBins != nil && *c.InclinationBins < 3 {
		return fmt.Errorf("inclination_bins must be at least 3, got %d", *c.InclinationBins)
	}

	if c.RowShiftMinFreedom != nil && *c.RowShiftMinFreedom < 1 {
		return fmt.Errorf("row_shift_min_freedom must be at least 1, got %d", *c.RowShiftMinFreedom)
	}

	if c.ChartMaxPoints != nil && *c.ChartMaxPoints < 1 {
		return fmt.Errorf("chart_max_points must be at least 1, got %d", *c.ChartMaxPoints)
	}

	return nil
}

// GetConvolutionMethod returns the convolution_method value or the default.
func (c *TuningConfig) GetConvolutionMethod() string {
	if c.ConvolutionMethod == nil || *c.ConvolutionMethod == "" {
		return "auto"
	}
	return *c.ConvolutionMethod
}

// GetLaplaceTolerance returns the laplace_tolerance value or the default.
func (c *TuningConfig) GetLaplaceTolerance() float64 {
	if c.LaplaceTolerance == nil {
		return 1e-10
	}
	return *c.LaplaceTolerance
}

// GetLaplaceMaxIterations returns the laplace_max_iterations value or the default.
func (c *TuningConfig) GetLaplaceMaxIterations() int {
	if c.LaplaceMaxIterations == nil {
		return 100000
	}
	return *c.LaplaceMaxIterations
}

// GetDistPoints returns the dist_points value or the default.
func (c *TuningConfig) GetDistPoints() int {
	if c.DistPoints == nil {
		return 0 // automatic
	}
	return *c.DistPoints
}

// GetInclinationBins returns the inclination_bins value or the default.
func (c *TuningConfig) GetInclinationBins() int {
	if c.InclinationBins == nil {
		return 64
	}
	return *c.InclinationBins
}

// GetRowShiftMinFreedom returns the row_shift_min_freedom value or the default.
func (c *TuningConfig) GetRowShiftMinFreedom() int {
	if c.RowShiftMinFreedom == nil {
		return 1
	}
	return *c.RowShiftMinFreedom
}

// GetDBPath returns the db_path value or the default.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "surface.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *TuningConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8090"
	}
	return *c.ListenAddr
}

// GetChartMaxPoints returns the chart_max_points value or the default.
func (c *TuningConfig) GetChartMaxPoints() int {
	if c.ChartMaxPoints == nil {
		return 40000
	}
	return *c.ChartMaxPoints
}
