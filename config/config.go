package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/soocke/load-curtain-go/domain/load"
)

// Similarity method names accepted by Config.SimilarityMethod.
const (
	MethodL2Norm = "l2norm"
	MethodNCC    = "ncc"
)

// TypeConfig holds detection thresholds for a single load type. Thresholds are
// fractions in [0,1]; durations are milliseconds.
type TypeConfig struct {
	OnsetThreshold     float64 `json:"onset_threshold"`
	HysteresisMargin   float64 `json:"hysteresis_margin"`
	MinPlateauMS       int     `json:"min_plateau_ms"`
	ReleaseDebounceMS  int     `json:"release_debounce_ms"`
	CooldownMS         int     `json:"cooldown_ms"`
	OffsetCorrectionMS int     `json:"offset_correction_ms"`
}

// MinPlateau returns the minimum plateau duration.
func (t TypeConfig) MinPlateau() time.Duration {
	return time.Duration(t.MinPlateauMS) * time.Millisecond
}

// ReleaseDebounce returns the release debounce window.
func (t TypeConfig) ReleaseDebounce() time.Duration {
	return time.Duration(t.ReleaseDebounceMS) * time.Millisecond
}

// Cooldown returns the window after a load of this type releases during which
// a new onset of the same type is suppressed.
func (t TypeConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownMS) * time.Millisecond
}

// OffsetCorrection returns the fixed per-type duration subtracted from each
// finalized load of this type.
func (t TypeConfig) OffsetCorrection() time.Duration {
	return time.Duration(t.OffsetCorrectionMS) * time.Millisecond
}

// Config holds runtime configuration for the analysis pipeline.
// Fields may be loaded from a JSON file; live updates go through Store.
type Config struct {
	Debug bool `json:"debug"`

	// Analysis resolution every frame and template is normalized to.
	AnalysisWidth  int `json:"analysis_width"`
	AnalysisHeight int `json:"analysis_height"`

	// Raw frames smaller than this are skipped as degraded capture.
	MinFrameWidth  int `json:"min_frame_width"`
	MinFrameHeight int `json:"min_frame_height"`

	// Slice rectangle, in analysis coordinates. The region is expected to be
	// reliably black during inter-room transitions.
	SliceX int `json:"slice_x"`
	SliceY int `json:"slice_y"`
	SliceW int `json:"slice_w"`
	SliceH int `json:"slice_h"`

	SimilarityMethod string `json:"similarity_method"`

	// Similarity above this against an end-screen template stops tracking.
	EndScreenThreshold float64 `json:"end_screen_threshold"`

	// Black-screen gating. Luminance and entropy are fractions in [0,1].
	BlackThreshold        float64 `json:"black_threshold"`
	BlackEntropyThreshold float64 `json:"black_entropy_threshold"`
	BlackMinDurationMS    int     `json:"black_min_duration_ms"`

	// Maximum gap between detector intervals still fused into one load.
	FusionToleranceMS int `json:"fusion_tolerance_ms"`

	Types map[string]TypeConfig `json:"types"`
}

// blackMinFloorMS is the hard floor for the black-screen minimum duration,
// matching the game's shortest observable black screen.
const blackMinFloorMS = 100

const fusionToleranceCapMS = 5000

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	types := make(map[string]TypeConfig, len(load.TemplateTypes()))
	for _, t := range load.TemplateTypes() {
		types[string(t)] = TypeConfig{
			OnsetThreshold:    0.85,
			HysteresisMargin:  0.05,
			MinPlateauMS:      200,
			ReleaseDebounceMS: 250,
			CooldownMS:        1000,
		}
	}
	return &Config{
		Debug:                 false,
		AnalysisWidth:         320,
		AnalysisHeight:        180,
		MinFrameWidth:         160,
		MinFrameHeight:        90,
		SliceX:                80,
		SliceY:                45,
		SliceW:                160,
		SliceH:                90,
		SimilarityMethod:      MethodL2Norm,
		EndScreenThreshold:    0.98,
		BlackThreshold:        0.10,
		BlackEntropyThreshold: 0.35,
		BlackMinDurationMS:    blackMinFloorMS,
		FusionToleranceMS:     500,
		Types:                 types,
	}
}

// TypeConfig returns the threshold set for the given load type, falling back
// to defaults for unconfigured types.
func (c *Config) TypeConfig(t load.Type) TypeConfig {
	if tc, ok := c.Types[string(t)]; ok {
		return tc
	}
	return DefaultConfig().Types[string(load.Elevator)]
}

// SliceRect returns the slice rectangle clamped to the analysis bounds.
func (c *Config) SliceRect() image.Rectangle {
	r := image.Rect(c.SliceX, c.SliceY, c.SliceX+c.SliceW, c.SliceY+c.SliceH)
	return r.Intersect(image.Rect(0, 0, c.AnalysisWidth, c.AnalysisHeight))
}

// BlackMinDuration returns the minimum black-screen duration.
func (c *Config) BlackMinDuration() time.Duration {
	return time.Duration(c.BlackMinDurationMS) * time.Millisecond
}

// FusionTolerance returns the interval fusion gap.
func (c *Config) FusionTolerance() time.Duration {
	return time.Duration(c.FusionToleranceMS) * time.Millisecond
}

// Validate clamps values to safe ranges. Used at load time; live updates are
// checked strictly by Check instead.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.AnalysisWidth <= 0 {
		c.AnalysisWidth = def.AnalysisWidth
	}
	if c.AnalysisHeight <= 0 {
		c.AnalysisHeight = def.AnalysisHeight
	}
	if c.MinFrameWidth <= 0 {
		c.MinFrameWidth = def.MinFrameWidth
	}
	if c.MinFrameHeight <= 0 {
		c.MinFrameHeight = def.MinFrameHeight
	}
	if c.SliceW <= 0 || c.SliceH <= 0 || c.SliceRect().Empty() {
		c.SliceX, c.SliceY = def.SliceX, def.SliceY
		c.SliceW, c.SliceH = def.SliceW, def.SliceH
	}
	if c.SimilarityMethod != MethodL2Norm && c.SimilarityMethod != MethodNCC {
		c.SimilarityMethod = MethodL2Norm
	}
	if c.EndScreenThreshold <= 0 || c.EndScreenThreshold > 1 {
		c.EndScreenThreshold = def.EndScreenThreshold
	}
	if c.BlackThreshold <= 0 || c.BlackThreshold > 1 {
		c.BlackThreshold = def.BlackThreshold
	}
	if c.BlackEntropyThreshold <= 0 || c.BlackEntropyThreshold > 1 {
		c.BlackEntropyThreshold = def.BlackEntropyThreshold
	}
	if c.BlackMinDurationMS < blackMinFloorMS {
		c.BlackMinDurationMS = blackMinFloorMS
	}
	if c.FusionToleranceMS < 0 {
		c.FusionToleranceMS = 0
	} else if c.FusionToleranceMS > fusionToleranceCapMS {
		c.FusionToleranceMS = fusionToleranceCapMS
	}
	if c.Types == nil {
		c.Types = def.Types
	}
	for name, tc := range c.Types {
		dtc := def.Types[string(load.Elevator)]
		if tc.OnsetThreshold <= 0 || tc.OnsetThreshold > 1 {
			tc.OnsetThreshold = dtc.OnsetThreshold
		}
		if tc.HysteresisMargin < 0 {
			tc.HysteresisMargin = 0
		}
		if tc.HysteresisMargin > tc.OnsetThreshold {
			tc.HysteresisMargin = tc.OnsetThreshold
		}
		if tc.MinPlateauMS < 0 {
			tc.MinPlateauMS = dtc.MinPlateauMS
		}
		if tc.ReleaseDebounceMS < 0 {
			tc.ReleaseDebounceMS = dtc.ReleaseDebounceMS
		}
		if tc.CooldownMS < 0 {
			tc.CooldownMS = 0
		}
		if tc.OffsetCorrectionMS < 0 {
			tc.OffsetCorrectionMS = 0
		}
		c.Types[name] = tc
	}
	return nil
}

// Check verifies the configuration without mutating it. A non-nil error means
// the config must not replace a previously valid snapshot.
func (c *Config) Check() error {
	if c.AnalysisWidth <= 0 || c.AnalysisHeight <= 0 {
		return fmt.Errorf("invalid analysis resolution %dx%d", c.AnalysisWidth, c.AnalysisHeight)
	}
	if c.MinFrameWidth <= 0 || c.MinFrameHeight <= 0 {
		return fmt.Errorf("invalid minimum frame dimensions %dx%d", c.MinFrameWidth, c.MinFrameHeight)
	}
	if c.SliceRect().Empty() {
		return fmt.Errorf("slice rectangle %d,%d %dx%d outside analysis bounds", c.SliceX, c.SliceY, c.SliceW, c.SliceH)
	}
	if c.SimilarityMethod != MethodL2Norm && c.SimilarityMethod != MethodNCC {
		return fmt.Errorf("unknown similarity method %q", c.SimilarityMethod)
	}
	if c.EndScreenThreshold <= 0 || c.EndScreenThreshold > 1 {
		return fmt.Errorf("end screen threshold %v out of (0,1]", c.EndScreenThreshold)
	}
	if c.BlackThreshold <= 0 || c.BlackThreshold > 1 {
		return fmt.Errorf("black threshold %v out of (0,1]", c.BlackThreshold)
	}
	if c.BlackEntropyThreshold <= 0 || c.BlackEntropyThreshold > 1 {
		return fmt.Errorf("black entropy threshold %v out of (0,1]", c.BlackEntropyThreshold)
	}
	if c.BlackMinDurationMS < blackMinFloorMS {
		return fmt.Errorf("black minimum duration %dms below %dms floor", c.BlackMinDurationMS, blackMinFloorMS)
	}
	if c.FusionToleranceMS < 0 || c.FusionToleranceMS > fusionToleranceCapMS {
		return fmt.Errorf("fusion tolerance %dms out of [0,%d]", c.FusionToleranceMS, fusionToleranceCapMS)
	}
	for name, tc := range c.Types {
		if _, err := load.ParseType(name); err != nil {
			return err
		}
		if tc.OnsetThreshold <= 0 || tc.OnsetThreshold > 1 {
			return fmt.Errorf("%s: onset threshold %v out of (0,1]", name, tc.OnsetThreshold)
		}
		if tc.HysteresisMargin < 0 || tc.HysteresisMargin > tc.OnsetThreshold {
			return fmt.Errorf("%s: hysteresis margin %v exceeds onset threshold %v", name, tc.HysteresisMargin, tc.OnsetThreshold)
		}
		if tc.MinPlateauMS < 0 {
			return fmt.Errorf("%s: negative minimum plateau %dms", name, tc.MinPlateauMS)
		}
		if tc.ReleaseDebounceMS < 0 {
			return fmt.Errorf("%s: negative release debounce %dms", name, tc.ReleaseDebounceMS)
		}
		if tc.CooldownMS < 0 {
			return fmt.Errorf("%s: negative cooldown %dms", name, tc.CooldownMS)
		}
		if tc.OffsetCorrectionMS < 0 {
			return fmt.Errorf("%s: negative offset correction %dms", name, tc.OffsetCorrectionMS)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Types = make(map[string]TypeConfig, len(c.Types))
	for k, v := range c.Types {
		out.Types[k] = v
	}
	return &out
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
