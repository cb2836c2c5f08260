// Package obfuscator drives the mangling engine over every method of a
// module.
package obfuscator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/dotnet-toolset/Netfuser-sub001/common/gopool"
	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

// progressEvery is how many mangled methods pass between progress lines.
const progressEvery = 100

// Module is the set of method bodies handed over by the loader.
type Module struct {
	Name    string
	Methods []*cil.MethodBody
}

// Config contains the settings of one obfuscation run.
type Config struct {
	Mangle     mangle.Config
	Seed       int64
	Workers    int      `toml:",omitempty"`
	Strategies []string `toml:",omitempty"`
}

// DefaultConfig contains the default run settings.
var DefaultConfig = Config{
	Mangle: mangle.DefaultConfig,
	Seed:   1,
}

// Obfuscator mangles whole modules. One instance may run several modules,
// one at a time or concurrently.
type Obfuscator struct {
	config     Config
	dispatcher *mangle.Dispatcher
}

// New validates config and narrows registry to config.Strategies.
func New(config Config, registry *mangle.Registry, importer cil.Importer) (*Obfuscator, error) {
	if err := config.Mangle.Validate(); err != nil {
		return nil, err
	}
	reg, err := registry.Subset(config.Strategies...)
	if err != nil {
		return nil, err
	}
	return &Obfuscator{
		config:     config,
		dispatcher: mangle.NewDispatcher(config.Mangle, reg, importer, config.Seed),
	}, nil
}

// Config returns the settings the obfuscator was created with.
func (o *Obfuscator) Config() Config {
	return o.config
}

// Run mangles every method of m in parallel. Each method is transformed on
// a private copy; the copies replace the originals only when every method
// succeeded, so a failed run leaves m untouched.
func (o *Obfuscator) Run(ctx context.Context, m *Module) (*Report, error) {
	start := time.Now()
	var (
		outs     = make([]*cil.MethodBody, len(m.Methods))
		results  = make([]*mangle.Result, len(m.Methods))
		done     atomic.Int64
		progress = &log.EveryN{N: progressEvery}
		skipped  = &log.EveryN{N: progressEvery}
	)
	log.Info("Mangling module", "module", m.Name, "methods", len(m.Methods), "seed", o.config.Seed)

	err := gopool.Run(ctx, len(m.Methods), o.config.Workers, func(i int) error {
		out, res, err := o.dispatcher.Transform(m.Methods[i])
		if err != nil {
			return err
		}
		outs[i], results[i] = out, res
		if res.Skipped {
			log.DebugBy(skipped, "Skipped method", "module", m.Name, "method", res.Method, "seen", skipped.Seen())
		}
		log.InfoBy(progress, "Mangling progress", "module", m.Name, "done", done.Add(1), "total", len(m.Methods))
		return nil
	})
	if err != nil {
		log.Error("Mangling aborted, module left unchanged", "module", m.Name, "err", err)
		return nil, errors.Wrapf(err, "module %s", m.Name)
	}
	for i, out := range outs {
		if out != m.Methods[i] {
			*m.Methods[i] = *out
		}
	}
	report := &Report{
		Module:  m.Name,
		Seed:    o.config.Seed,
		Methods: results,
		Elapsed: time.Since(start),
	}
	t := report.Totals()
	log.WarnIf(len(results) > 0 && t.Mangled == 0, "No method was mangled", "module", m.Name,
		"strategies", o.dispatcher.Strategies())
	log.Info("Mangled module", "module", m.Name, "methods", len(results), "skipped", t.Skipped,
		"before", t.Before, "after", t.After, "jumps", t.Jumps, "elapsed", report.Elapsed)
	return report, nil
}
