package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/apvscan/apvscan/internal/dedup"
	"github.com/apvscan/apvscan/internal/detect"
	"github.com/apvscan/apvscan/internal/imaging"
	"github.com/apvscan/apvscan/internal/raster"
)

// Config holds the scanner configuration.
type Config struct {
	Raster     RasterConfig     `yaml:"raster"`
	TextFilter TextFilterConfig `yaml:"text_filter"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Detector   DetectorConfig   `yaml:"detector"`
	Model      ModelConfig      `yaml:"model"`
	Output     OutputConfig     `yaml:"output"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RasterConfig holds PDF rendering settings.
type RasterConfig struct {
	DPI int `yaml:"dpi"` // render resolution (default: 300)
}

// TextFilterConfig holds the text-sheet page filter settings.
type TextFilterConfig struct {
	Disabled bool `yaml:"disabled"`
	// MaxChars is the character count above which a page is treated as a
	// text sheet and skipped (default: 500).
	MaxChars int `yaml:"max_chars"`
}

// DedupConfig holds the duplicate-page filter settings.
type DedupConfig struct {
	NFeatures int     `yaml:"nfeatures"` // per-page keypoint budget (default: 20000)
	Ratio     float64 `yaml:"ratio"`     // ratio-test threshold (default: 0.75)
	MinGood   int     `yaml:"min_good"`  // duplicate match threshold (default: 12000)
}

// DetectorConfig holds the sign-region detector settings.
type DetectorConfig struct {
	Masks    MaskConfig     `yaml:"masks"`
	Geometry GeometryConfig `yaml:"geometry"`
	Subsign  SubsignConfig  `yaml:"subsign"`
}

// MaskConfig holds the HSV segmentation bands.
type MaskConfig struct {
	RedLow        imaging.HSVRange `yaml:"red_low"`
	RedHigh       imaging.HSVRange `yaml:"red_high"`
	Yellow        imaging.HSVRange `yaml:"yellow"`
	White         imaging.HSVRange `yaml:"white"`
	SubsignYellow imaging.HSVRange `yaml:"subsign_yellow"`
}

// GeometryConfig holds the contour shape filters.
type GeometryConfig struct {
	MinArea     int     `yaml:"min_area"`
	MaxAspect   float64 `yaml:"max_aspect"`
	MinFaceFrac float64 `yaml:"min_face_frac"`
	MinRimFrac  float64 `yaml:"min_rim_frac"`
	Margin      int     `yaml:"margin"`
}

// SubsignConfig holds the yellow-plate secondary pass filters.
type SubsignConfig struct {
	MinArea   int     `yaml:"min_area"`
	MinAspect float64 `yaml:"min_aspect"`
	MaxAspect float64 `yaml:"max_aspect"`
	MinFill   float64 `yaml:"min_fill"`
}

// ModelConfig holds the classifier artifact locations.
type ModelConfig struct {
	WeightsPath string `yaml:"weights_path"`
	ClassesPath string `yaml:"classes_path"`
}

// OutputConfig holds result output settings.
type OutputConfig struct {
	Dir        string `yaml:"dir"`         // output directory (default: out)
	ReportName string `yaml:"report_name"` // CSV filename (default: predictions.csv)
	SaveCrops  bool   `yaml:"save_crops"`  // write region crops as PNG files
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Workers int `yaml:"workers"` // concurrent page workers (default: 1)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod (default: local)
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file, fills defaults and validates.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration with every field at its default value.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Raster.DPI <= 0 {
		c.Raster.DPI = raster.DefaultDPI
	}
	if c.TextFilter.MaxChars <= 0 {
		c.TextFilter.MaxChars = 500
	}

	dd := dedup.DefaultParams()
	if c.Dedup.NFeatures <= 0 {
		c.Dedup.NFeatures = dd.NFeatures
	}
	if c.Dedup.Ratio <= 0 {
		c.Dedup.Ratio = dd.Ratio
	}
	if c.Dedup.MinGood <= 0 {
		c.Dedup.MinGood = dd.MinGood
	}

	dp := detect.DefaultParams()
	if c.Detector.Masks.RedLow == (imaging.HSVRange{}) {
		c.Detector.Masks.RedLow = dp.Masks.RedLow
	}
	if c.Detector.Masks.RedHigh == (imaging.HSVRange{}) {
		c.Detector.Masks.RedHigh = dp.Masks.RedHigh
	}
	if c.Detector.Masks.Yellow == (imaging.HSVRange{}) {
		c.Detector.Masks.Yellow = dp.Masks.Yellow
	}
	if c.Detector.Masks.White == (imaging.HSVRange{}) {
		c.Detector.Masks.White = dp.Masks.White
	}
	if c.Detector.Masks.SubsignYellow == (imaging.HSVRange{}) {
		c.Detector.Masks.SubsignYellow = dp.Masks.SubsignYellow
	}
	if c.Detector.Geometry.MinArea <= 0 {
		c.Detector.Geometry.MinArea = dp.Geometry.MinArea
	}
	if c.Detector.Geometry.MaxAspect <= 0 {
		c.Detector.Geometry.MaxAspect = dp.Geometry.MaxAspect
	}
	if c.Detector.Geometry.MinFaceFrac <= 0 {
		c.Detector.Geometry.MinFaceFrac = dp.Geometry.MinFaceFrac
	}
	if c.Detector.Geometry.MinRimFrac <= 0 {
		c.Detector.Geometry.MinRimFrac = dp.Geometry.MinRimFrac
	}
	if c.Detector.Geometry.Margin <= 0 {
		c.Detector.Geometry.Margin = dp.Geometry.Margin
	}
	if c.Detector.Subsign.MinArea <= 0 {
		c.Detector.Subsign.MinArea = dp.Subsign.MinArea
	}
	if c.Detector.Subsign.MinAspect <= 0 {
		c.Detector.Subsign.MinAspect = dp.Subsign.MinAspect
	}
	if c.Detector.Subsign.MaxAspect <= 0 {
		c.Detector.Subsign.MaxAspect = dp.Subsign.MaxAspect
	}
	if c.Detector.Subsign.MinFill <= 0 {
		c.Detector.Subsign.MinFill = dp.Subsign.MinFill
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Output.ReportName == "" {
		c.Output.ReportName = "predictions.csv"
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Raster.DPI < 36 || c.Raster.DPI > 1200 {
		return fmt.Errorf("raster.dpi must be between 36 and 1200, got %d", c.Raster.DPI)
	}
	if c.Dedup.Ratio <= 0 || c.Dedup.Ratio >= 1 {
		return fmt.Errorf("dedup.ratio must be in (0, 1), got %g", c.Dedup.Ratio)
	}
	for name, r := range map[string]imaging.HSVRange{
		"red_low":        c.Detector.Masks.RedLow,
		"red_high":       c.Detector.Masks.RedHigh,
		"yellow":         c.Detector.Masks.Yellow,
		"white":          c.Detector.Masks.White,
		"subsign_yellow": c.Detector.Masks.SubsignYellow,
	} {
		if err := validateRange(name, r); err != nil {
			return err
		}
	}
	if c.Detector.Geometry.MaxAspect < 1 {
		return fmt.Errorf("detector.geometry.max_aspect must be >= 1, got %g", c.Detector.Geometry.MaxAspect)
	}
	if c.Detector.Subsign.MinAspect > c.Detector.Subsign.MaxAspect {
		return fmt.Errorf("detector.subsign: min_aspect %g exceeds max_aspect %g",
			c.Detector.Subsign.MinAspect, c.Detector.Subsign.MaxAspect)
	}
	return nil
}

// DedupParams converts the dedup section into filter parameters.
func (c *Config) DedupParams() dedup.Params {
	return dedup.Params{
		NFeatures: c.Dedup.NFeatures,
		Ratio:     c.Dedup.Ratio,
		MinGood:   c.Dedup.MinGood,
	}
}

// DetectorParams converts the detector section into detector parameters.
func (c *Config) DetectorParams() detect.Params {
	return detect.Params{
		Masks: detect.MaskParams{
			RedLow:        c.Detector.Masks.RedLow,
			RedHigh:       c.Detector.Masks.RedHigh,
			Yellow:        c.Detector.Masks.Yellow,
			White:         c.Detector.Masks.White,
			SubsignYellow: c.Detector.Masks.SubsignYellow,
		},
		Geometry: detect.GeometryParams{
			MinArea:     c.Detector.Geometry.MinArea,
			MaxAspect:   c.Detector.Geometry.MaxAspect,
			MinFaceFrac: c.Detector.Geometry.MinFaceFrac,
			MinRimFrac:  c.Detector.Geometry.MinRimFrac,
			Margin:      c.Detector.Geometry.Margin,
		},
		Subsign: detect.SubsignParams{
			MinArea:   c.Detector.Subsign.MinArea,
			MinAspect: c.Detector.Subsign.MinAspect,
			MaxAspect: c.Detector.Subsign.MaxAspect,
			MinFill:   c.Detector.Subsign.MinFill,
		},
	}
}

func validateRange(name string, r imaging.HSVRange) error {
	if r.HueMin < 0 || r.HueMax > 360 || r.HueMin > r.HueMax {
		return fmt.Errorf("detector.masks.%s: hue bounds must satisfy 0 <= min <= max <= 360", name)
	}
	if r.SatMin < 0 || r.SatMax > 1 || r.SatMin > r.SatMax {
		return fmt.Errorf("detector.masks.%s: saturation bounds must satisfy 0 <= min <= max <= 1", name)
	}
	if r.ValMin < 0 || r.ValMax > 1 || r.ValMin > r.ValMax {
		return fmt.Errorf("detector.masks.%s: value bounds must satisfy 0 <= min <= max <= 1", name)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
