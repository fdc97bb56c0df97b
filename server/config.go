package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"enigma-holdem/server/engine"
)

// TableFile is the optional HCL file with named table presets:
//
//	table "default" {
//	  small_blind = 10
//	  big_blind   = 20
//	}
type TableFile struct {
	Tables []TableConfig `hcl:"table,block"`
}

type TableConfig struct {
	Name               string  `hcl:"name,label"`
	SmallBlind         int     `hcl:"small_blind,optional"`
	BigBlind           int     `hcl:"big_blind,optional"`
	StartingChips      int     `hcl:"starting_chips,optional"`
	MaxRaisesPerStreet int     `hcl:"max_raises_per_street,optional"`
	PotMultiplier      float64 `hcl:"pot_multiplier,optional"`
}

// Engine fills unset blinds and stack from the classic preset.
func (t TableConfig) Engine() engine.Config {
	c := engine.ClassicConfig()
	if t.SmallBlind > 0 {
		c.SmallBlind = t.SmallBlind
	}
	if t.BigBlind > 0 {
		c.BigBlind = t.BigBlind
	}
	if t.StartingChips > 0 {
		c.StartingChips = t.StartingChips
	}
	c.MaxRaisesPerStreet = t.MaxRaisesPerStreet
	c.PotMultiplier = t.PotMultiplier
	return c
}

// Presets resolves table names to engine configs. The built-in "classic"
// and "shaped" presets are always present; file entries may override them.
type Presets map[string]engine.Config

func (p Presets) Lookup(name string) (engine.Config, error) {
	if name == "" {
		name = "default"
	}
	if c, ok := p[name]; ok {
		return c, nil
	}
	return engine.Config{}, fmt.Errorf("unknown table preset %q", name)
}

func builtinPresets() Presets {
	return Presets{
		"default": engine.ClassicConfig(),
		"classic": engine.ClassicConfig(),
		"shaped":  engine.ShapedConfig(),
	}
}

// LoadTables reads the HCL table file. A missing file yields the built-in
// presets only.
func LoadTables(filename string) (Presets, error) {
	presets := builtinPresets()
	if filename == "" {
		return presets, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return presets, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	var tf TableFile
	diags = gohcl.DecodeBody(file.Body, nil, &tf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	for _, t := range tf.Tables {
		c := t.Engine()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		presets[t.Name] = c
	}
	return presets, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
