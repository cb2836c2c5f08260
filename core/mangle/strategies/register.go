// Package strategies holds the built-in mangling strategies.
package strategies

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
)

var builtin = map[string]func() mangle.Strategy{
	"shuffle": func() mangle.Strategy { return Shuffle{} },
	"chain":   func() mangle.Strategy { return Chain{} },
}

// Names lists the built-in strategies in sorted order.
func Names() []string {
	names := maps.Keys(builtin)
	slices.Sort(names)
	return names
}

// Register adds the named built-ins to reg, or all of them when names is
// empty.
func Register(reg *mangle.Registry, names ...string) error {
	if len(names) == 0 {
		names = Names()
	}
	for _, name := range names {
		mk, ok := builtin[name]
		if !ok {
			return fmt.Errorf("unknown strategy %q, have %v", name, Names())
		}
		if err := reg.Register(mk()); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the named built-ins.
func NewRegistry(names ...string) (*mangle.Registry, error) {
	reg, err := mangle.NewRegistry()
	if err != nil {
		return nil, err
	}
	if err := Register(reg, names...); err != nil {
		return nil, err
	}
	return reg, nil
}
