// Package models provides the Alpha CPU model table.
//
// Each model maps a name to an implementation version (the value returned by
// the IMPLVER instruction) and a feature mask (the architecture extension
// bits reported by AMASK). The feature mask gates which opcodes the
// translator accepts.
//
// Usage:
//
//	m, err := models.Lookup("ev56")
//	if m.Has(models.FeatureBWX) { ... }
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ImplVer is the implementation version reported by IMPLVER.
type ImplVer uint8

// Implementation versions.
const (
	ImplVer2106x ImplVer = 0 // EV4, EV45, LCA, LCA45
	ImplVer21164 ImplVer = 1 // EV5, EV56, PCA56
	ImplVer21264 ImplVer = 2 // EV6, EV67, EV68
	ImplVer21364 ImplVer = 3 // EV7
)

// String returns the chip family name.
func (v ImplVer) String() string {
	switch v {
	case ImplVer2106x:
		return "2106x"
	case ImplVer21164:
		return "21164"
	case ImplVer21264:
		return "21264"
	case ImplVer21364:
		return "21364"
	default:
		return fmt.Sprintf("implver(%d)", uint8(v))
	}
}

// Feature is a bitmask of architecture extensions. Bit positions match the
// AMASK instruction encoding.
type Feature uint64

// Architecture extensions.
const (
	FeatureBWX      Feature = 1 << 0  // byte/word loads, stores and sign extension
	FeatureFIX      Feature = 1 << 1  // square root and FP/integer register moves
	FeatureCIX      Feature = 1 << 2  // count extension (CTPOP, CTLZ, CTTZ)
	FeatureMVI      Feature = 1 << 8  // multimedia extension
	FeatureTrap     Feature = 1 << 9  // precise arithmetic trap reporting
	FeaturePrefetch Feature = 1 << 12 // prefetch with modify intent
)

// FeatureNone is the empty mask of the base architecture.
const FeatureNone Feature = 0

// String lists the set extensions, e.g. "BWX|FIX".
func (f Feature) String() string {
	if f == FeatureNone {
		return "none"
	}

	names := []struct {
		bit  Feature
		name string
	}{
		{FeatureBWX, "BWX"},
		{FeatureFIX, "FIX"},
		{FeatureCIX, "CIX"},
		{FeatureMVI, "MVI"},
		{FeatureTrap, "TRAP"},
		{FeaturePrefetch, "PREFETCH"},
	}

	var parts []string
	rest := f
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}

	return strings.Join(parts, "|")
}

// Model describes one CPU model.
type Model struct {
	Name     string
	ImplVer  ImplVer
	Features Feature
}

// Has reports whether all bits of f are implemented by the model.
func (m Model) Has(f Feature) bool {
	return m.Features&f == f
}

// ErrUnknownModel is returned by Lookup for a name not in the table.
var ErrUnknownModel = errors.New("unknown cpu model")

const fullFeatures = FeatureBWX | FeatureFIX | FeatureCIX | FeatureMVI |
	FeatureTrap | FeaturePrefetch

var table = [...]Model{
	{"ev4", ImplVer2106x, FeatureNone},
	{"ev5", ImplVer21164, FeatureNone},
	{"ev56", ImplVer21164, FeatureBWX},
	{"pca56", ImplVer21164, FeatureBWX | FeatureMVI},
	{"ev6", ImplVer21264, FeatureBWX | FeatureFIX | FeatureMVI | FeatureTrap},
	{"ev67", ImplVer21264, fullFeatures},
	{"ev68", ImplVer21264, fullFeatures},
	{"21064", ImplVer2106x, FeatureNone},
	{"21164", ImplVer21164, FeatureNone},
	{"21164a", ImplVer21164, FeatureBWX},
	{"21164pc", ImplVer21164, FeatureBWX | FeatureMVI},
	{"21264", ImplVer21264, FeatureBWX | FeatureFIX | FeatureMVI | FeatureTrap},
	{"21264a", ImplVer21264, fullFeatures},
}

// DefaultName is the model used when none is configured. It implements
// every extension so that no instruction is rejected by default.
const DefaultName = "ev67"

// Lookup returns the model with the given name.
func Lookup(name string) (Model, error) {
	for _, m := range table {
		if m.Name == name {
			return m, nil
		}
	}

	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Default returns the default model.
func Default() Model {
	m, _ := Lookup(DefaultName)
	return m
}

// All returns a copy of the model table in declaration order.
func All() []Model {
	out := make([]Model, len(table))
	copy(out, table[:])
	return out
}
