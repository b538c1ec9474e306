package bisturi

import (
	"github.com/bisturi/bisturi/internal/config"
)

// Endianness selects the byte order Int fields use when they don't name
// their own.
type Endianness = config.Endianness

const (
	Big     = config.Big
	Little  = config.Little
	Network = config.Network
	Native  = config.Native
)

// Config is the per-schema configuration map described in spec.md §6: the
// default endianness and alignment, the until-marker search window, extra
// instance slots, and the optional codegen toggles ported from bisturi's
// specialization_of mechanism (see SPEC_FULL.md §12 — they have no runtime
// effect in this port beyond Schema.HasBreakpoint).
type Config struct {
	Endianness         Endianness
	Align              int
	SearchBufferLength int // 0 means unbounded
	GenerateForPack    bool
	GenerateForUnpack  bool
	AdditionalSlots    []string
}

// DefaultConfig returns the configuration bisturi schemas use when no
// Config is supplied: big endian, byte-aligned, unbounded marker search.
func DefaultConfig() *Config {
	return &Config{
		Endianness:        Big,
		Align:             1,
		GenerateForPack:   true,
		GenerateForUnpack: true,
	}
}

func (c *Config) clone() *Config {
	cp := *c
	cp.AdditionalSlots = append([]string(nil), c.AdditionalSlots...)
	return &cp
}

// FromYAML builds a Config from a YAML document, per SPEC_FULL.md §8's
// domain-stack wiring of gopkg.in/yaml.v3 — lets example protocols and
// table-driven tests declare a schema's Config out-of-line.
func FromYAML(doc []byte) (*Config, error) {
	raw, err := config.FromYAML(doc)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if raw.Endianness != "" {
		cfg.Endianness = config.ParseEndianness(raw.Endianness)
	}
	if raw.Align > 0 {
		cfg.Align = raw.Align
	}
	cfg.SearchBufferLength = raw.SearchBufferLength
	cfg.GenerateForPack = raw.GenerateForPack
	cfg.GenerateForUnpack = raw.GenerateForUnpack
	cfg.AdditionalSlots = raw.AdditionalSlots
	return cfg, nil
}
