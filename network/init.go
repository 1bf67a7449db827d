package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Weight initialization scheme names accepted in configuration files.
const (
	GlorotUniform = "glorot_uniform"
	GlorotNormal  = "glorot_normal"
	HeUniform     = "he_uniform"
	HeNormal      = "he_normal"
)

// InitFromName returns the weight initializer for a configured scheme
// name. The empty name selects Glorot uniform.
func InitFromName(name string) (G.InitWFn, error) {
	switch name {
	case "", GlorotUniform:
		return G.GlorotU(1.0), nil
	case GlorotNormal:
		return G.GlorotN(1.0), nil
	case HeUniform:
		return G.HeU(1.0), nil
	case HeNormal:
		return G.HeN(1.0), nil
	default:
		return nil, fmt.Errorf("initfromname: unknown weight "+
			"initialization scheme %q", name)
	}
}
