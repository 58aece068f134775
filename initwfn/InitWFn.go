// Package initwfn creates Gorgonia weight initializers from plain
// configuration values so that they can be described in configuration
// files.
package initwfn

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available.
type Type string

// Available InitWFn types
const (
	GlorotU Type = "GlorotU"
	GlorotN Type = "GlorotN"
	HeU     Type = "HeU"
	HeN     Type = "HeN"
	Zeroes  Type = "Zeroes"
	Ones    Type = "Ones"
)

// Config describes a weight initializer. Gain is used by the Glorot
// and He initializers and defaults to 1.
type Config struct {
	Type Type    `mapstructure:"type" yaml:"type"`
	Gain float64 `mapstructure:"gain" yaml:"gain,omitempty"`
}

// String implements the fmt.Stringer interface
func (c Config) String() string {
	return fmt.Sprintf("{%v InitWFn: gain=%v}", c.Type, c.Gain)
}

// Create returns the Gorgonia InitWFn that the Config describes. Type
// names are matched case-insensitively and an empty Type selects
// GlorotU.
func (c Config) Create() (G.InitWFn, error) {
	gain := c.Gain
	if gain == 0 {
		gain = 1.0
	}

	t := c.Type
	if t == "" {
		t = GlorotU
	}

	switch strings.ToLower(string(t)) {
	case strings.ToLower(string(GlorotU)):
		return G.GlorotU(gain), nil
	case strings.ToLower(string(GlorotN)):
		return G.GlorotN(gain), nil
	case strings.ToLower(string(HeU)):
		return G.HeU(gain), nil
	case strings.ToLower(string(HeN)):
		return G.HeN(gain), nil
	case strings.ToLower(string(Zeroes)):
		return G.Zeroes(), nil
	case strings.ToLower(string(Ones)):
		return G.Ones(), nil
	}
	return nil, fmt.Errorf("create: unknown initializer type %q", c.Type)
}
