// Package config implements the per-schema configuration map (spec.md §6,
// "Per-schema configuration"): endianness, default alignment, the
// until-marker search window, extra instance slots, and declarative YAML
// loading so example protocols and table-driven tests can parametrize a
// schema's Config out-of-line instead of hand-writing Go literals.
package config

import (
	"gopkg.in/yaml.v3"
)

// Endianness selects the byte order used by Int fields that don't name
// their own.
type Endianness int

const (
	Big Endianness = iota
	Little
	Network // alias for Big
	Native
)

// Raw is the YAML-decodable shape of a Config; the root package's FromYAML
// converts it into a bisturi.Config, so the root package owns the public
// type while this package owns only the YAML mechanics.
type Raw struct {
	Endianness         string   `yaml:"endianness"`
	Align              int      `yaml:"align"`
	SearchBufferLength int      `yaml:"search_buffer_length"`
	GenerateForPack    bool     `yaml:"generate_for_pack"`
	GenerateForUnpack  bool     `yaml:"generate_for_unpack"`
	AdditionalSlots    []string `yaml:"additional_slots"`
}

// ParseEndianness maps a YAML string onto an Endianness value, defaulting
// to Big for an empty or unrecognized string.
func ParseEndianness(s string) Endianness {
	switch s {
	case "little":
		return Little
	case "network":
		return Network
	case "local", "native":
		return Native
	default:
		return Big
	}
}

// FromYAML decodes a Config document.
func FromYAML(doc []byte) (Raw, error) {
	var r Raw
	if err := yaml.Unmarshal(doc, &r); err != nil {
		return Raw{}, err
	}
	return r, nil
}
