// Package config loads and validates the JSON configuration shared by the
// translator and the executor.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/alphatx/cache"
	"github.com/sarchlab/alphatx/emu"
	"github.com/sarchlab/alphatx/models"
	"github.com/sarchlab/alphatx/translate"
)

// Config holds translator and executor settings.
type Config struct {
	// Model is the CPU model name whose features gate instructions.
	// Default: "ev67".
	Model string `json:"model"`

	// MaxInsns caps the number of instructions per translation unit.
	MaxInsns int `json:"max_insns"`

	// PageSize is the boundary a unit never crosses. Must be a power of
	// two no smaller than an instruction.
	PageSize uint64 `json:"page_size"`

	// IRCapacity is the op count after which a unit is closed.
	IRCapacity int `json:"ir_capacity"`

	// SingleStep ends every unit after one instruction.
	SingleStep bool `json:"single_step"`

	// DebugStep raises the debug exception after every instruction.
	DebugStep bool `json:"debug_step"`

	// Breakpoints are guest addresses that raise the debug exception.
	Breakpoints []uint64 `json:"breakpoints,omitempty"`

	// SearchPC records a pc index in every unit.
	SearchPC bool `json:"search_pc"`

	// UserOnly translates for user-mode emulation of Linux programs.
	// Default: true.
	UserOnly bool `json:"user_only"`

	// PALMode enables the hardware PALcode instructions.
	PALMode bool `json:"pal_mode"`

	// MemIndex is the memory index passed to every load and store.
	MemIndex int `json:"mem_index"`

	// MaxInstructions is the executor's instruction budget. 0 means no
	// limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// Cache is the optional data cache in front of guest memory.
	Cache *cache.Config `json:"cache,omitempty"`
}

// DefaultConfig returns a Config for running user-mode programs on the
// default model.
func DefaultConfig() *Config {
	return &Config{
		Model:      models.DefaultName,
		MaxInsns:   translate.DefaultMaxInsns,
		PageSize:   translate.DefaultPageSize,
		IRCapacity: translate.DefaultIRCapacity,
		UserOnly:   true,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	if _, err := models.Lookup(c.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.MaxInsns <= 0 {
		return fmt.Errorf("max_insns must be > 0")
	}
	if c.PageSize < 4 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page_size must be a power of two >= 4")
	}
	if c.IRCapacity <= 0 {
		return fmt.Errorf("ir_capacity must be > 0")
	}
	if c.MemIndex < 0 {
		return fmt.Errorf("mem_index must be >= 0")
	}
	if c.UserOnly && c.PALMode {
		return fmt.Errorf("pal_mode cannot be combined with user_only")
	}
	for _, pc := range c.Breakpoints {
		if pc%4 != 0 {
			return fmt.Errorf("breakpoint 0x%x is not instruction aligned", pc)
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Validate(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Breakpoints = append([]uint64(nil), c.Breakpoints...)
	if c.Cache != nil {
		cc := *c.Cache
		clone.Cache = &cc
	}
	return &clone
}

// TranslatorOptions returns the translator options the Config describes.
func (c *Config) TranslatorOptions() ([]translate.Option, error) {
	model, err := models.Lookup(c.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	return []translate.Option{
		translate.WithModel(model),
		translate.WithMode(translate.Mode{
			MemIndex: c.MemIndex,
			PALMode:  c.PALMode,
			UserOnly: c.UserOnly,
		}),
		translate.WithMaxInsns(c.MaxInsns),
		translate.WithPageSize(c.PageSize),
		translate.WithIRCapacity(c.IRCapacity),
		translate.WithSingleStep(c.SingleStep),
		translate.WithDebugStep(c.DebugStep),
		translate.WithBreakpoints(c.Breakpoints...),
		translate.WithSearchPC(c.SearchPC),
	}, nil
}

// ExecutorOptions returns the executor options the Config describes,
// including its translator options. The Config is validated first.
func (c *Config) ExecutorOptions() ([]emu.ExecutorOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tOpts, err := c.TranslatorOptions()
	if err != nil {
		return nil, err
	}

	opts := []emu.ExecutorOption{
		emu.WithTranslatorOptions(tOpts...),
		emu.WithMaxInstructions(c.MaxInstructions),
	}
	if c.Cache != nil {
		opts = append(opts, emu.WithCache(*c.Cache))
	}

	return opts, nil
}
