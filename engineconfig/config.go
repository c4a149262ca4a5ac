// Package engineconfig loads the search engine's tunable constants: PUCT
// formula coefficients, batch/thread sizing, and store capacity. It is
// grounded on the teacher's config.Config (a flat struct populated by a
// flag parser), generalized to spf13/viper for layered file/env
// configuration since our surface is deeper (nested PUCT/limit/store
// sections) than macondo's handful of top-level path strings. viper is
// a direct dependency the teacher's go.mod already declares but never
// imports anywhere in the retrieved source; this is its first real use.
package engineconfig

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PUCTConfig holds the selection-formula coefficients from spec §4.3,
// separately tunable at the root versus interior nodes.
type PUCTConfig struct {
	CpuctBaseRoot     float64 `mapstructure:"cpuct_base_root"`
	CpuctFactorRoot   float64 `mapstructure:"cpuct_factor_root"`
	CpuctInitRoot     float64 `mapstructure:"cpuct_init_root"`
	CpuctBaseInterior float64 `mapstructure:"cpuct_base_interior"`
	CpuctFactorInterior float64 `mapstructure:"cpuct_factor_interior"`
	CpuctInitInterior float64 `mapstructure:"cpuct_init_interior"`

	// ParentVisitExponent is the "parentTerm(N)" exponent; 1 means √N.
	ParentVisitExponent float64 `mapstructure:"parent_visit_exponent"`
	// RootDenominatorExponent is `d` at the root; interior nodes always use 1.
	RootDenominatorExponent float64 `mapstructure:"root_denominator_exponent"`

	// FPUValue is the first-play-urgency offset subtracted from the
	// parent's Q for unexpanded children.
	FPUValue float64 `mapstructure:"fpu_value"`
	// FPUReductionFactor scales the offset down by sumPVisited, the
	// teacher-style "the more of the parent's mass we've already
	// explored, the less urgent the remainder looks" reduction.
	FPUReductionFactor float64 `mapstructure:"fpu_reduction_factor"`

	MLHBonusFactor float64 `mapstructure:"mlh_bonus_factor"`
}

// StoreConfig sizes the node/edge arenas.
type StoreConfig struct {
	NodeCapacity        uint32 `mapstructure:"node_capacity"`
	EdgeCapacity         uint32 `mapstructure:"edge_capacity"`
	MaxPolicyMovesPerNode uint16 `mapstructure:"max_policy_moves_per_node"`
	CanBeExpanded        bool   `mapstructure:"can_be_expanded"`
}

// SearchConfig sizes the dispatcher's concurrency.
type SearchConfig struct {
	NumSelectors  int `mapstructure:"num_selectors"`
	MaxBatchSize  int `mapstructure:"max_batch_size"`
}

// Config is the top-level configuration tree.
type Config struct {
	PUCT   PUCTConfig   `mapstructure:"puct"`
	Store  StoreConfig  `mapstructure:"store"`
	Search SearchConfig `mapstructure:"search"`
}

// Default returns the engine's built-in defaults, the values used when no
// config file or environment override is present.
func Default() Config {
	return Config{
		PUCT: PUCTConfig{
			CpuctBaseRoot:           1.25,
			CpuctFactorRoot:         2.0,
			CpuctInitRoot:           19652,
			CpuctBaseInterior:       1.25,
			CpuctFactorInterior:     2.0,
			CpuctInitInterior:       19652,
			ParentVisitExponent:     1.0,
			RootDenominatorExponent: 1.0,
			FPUValue:                0.25,
			FPUReductionFactor:      0.0,
			MLHBonusFactor:          0.0,
		},
		Store: StoreConfig{
			NodeCapacity:          1 << 20,
			EdgeCapacity:          1 << 22,
			MaxPolicyMovesPerNode: 64,
			CanBeExpanded:         true,
		},
		Search: SearchConfig{
			NumSelectors: 2,
			MaxBatchSize: 64,
		},
	}
}

// Load reads configuration from an optional file path and environment
// variables prefixed PUCTCORE_ (e.g. PUCTCORE_PUCT_MLH_BONUS_FACTOR),
// layered over Default(), in the manner of the teacher's config.Load
// reading flags over implicit zero values but with viper's richer
// file+env layering since the nested sections here don't map cleanly to
// flat command-line flags.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("puctcore")
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("engineconfig: reading %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("loaded config file")
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("engineconfig: unmarshal: %w", err)
	}
	if err := out.validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("puct.cpuct_base_root", cfg.PUCT.CpuctBaseRoot)
	v.SetDefault("puct.cpuct_factor_root", cfg.PUCT.CpuctFactorRoot)
	v.SetDefault("puct.cpuct_init_root", cfg.PUCT.CpuctInitRoot)
	v.SetDefault("puct.cpuct_base_interior", cfg.PUCT.CpuctBaseInterior)
	v.SetDefault("puct.cpuct_factor_interior", cfg.PUCT.CpuctFactorInterior)
	v.SetDefault("puct.cpuct_init_interior", cfg.PUCT.CpuctInitInterior)
	v.SetDefault("puct.parent_visit_exponent", cfg.PUCT.ParentVisitExponent)
	v.SetDefault("puct.root_denominator_exponent", cfg.PUCT.RootDenominatorExponent)
	v.SetDefault("puct.fpu_value", cfg.PUCT.FPUValue)
	v.SetDefault("puct.fpu_reduction_factor", cfg.PUCT.FPUReductionFactor)
	v.SetDefault("puct.mlh_bonus_factor", cfg.PUCT.MLHBonusFactor)

	v.SetDefault("store.node_capacity", cfg.Store.NodeCapacity)
	v.SetDefault("store.edge_capacity", cfg.Store.EdgeCapacity)
	v.SetDefault("store.max_policy_moves_per_node", cfg.Store.MaxPolicyMovesPerNode)
	v.SetDefault("store.can_be_expanded", cfg.Store.CanBeExpanded)

	v.SetDefault("search.num_selectors", cfg.Search.NumSelectors)
	v.SetDefault("search.max_batch_size", cfg.Search.MaxBatchSize)
}

func (c Config) validate() error {
	if c.Store.NodeCapacity == 0 {
		return fmt.Errorf("engineconfig: store.node_capacity must be > 0")
	}
	if c.Store.EdgeCapacity == 0 {
		return fmt.Errorf("engineconfig: store.edge_capacity must be > 0")
	}
	if c.Store.MaxPolicyMovesPerNode == 0 {
		return fmt.Errorf("engineconfig: store.max_policy_moves_per_node must be > 0")
	}
	if c.Search.NumSelectors <= 0 {
		return fmt.Errorf("engineconfig: search.num_selectors must be > 0")
	}
	if c.Search.MaxBatchSize <= 0 {
		return fmt.Errorf("engineconfig: search.max_batch_size must be > 0")
	}
	return nil
}
