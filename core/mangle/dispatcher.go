package mangle

import (
	"github.com/pkg/errors"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

// Result summarizes the mangling of one method.
type Result struct {
	Method    string
	Strategy  string
	Skipped   bool
	Blocks    int
	Fragments int
	Jumps     int
	Before    int
	After     int
	MaxStack  int
}

const blockTraceEvery = 16

// Dispatcher picks one strategy per method and drives it over every regular
// block. The registry and the seed are injected; the dispatcher owns
// neither, and is safe for concurrent use on distinct bodies.
type Dispatcher struct {
	config   Config
	registry *Registry
	importer cil.Importer
	seed     int64

	blocks *log.EveryN // samples per-block trace records across workers
}

// NewDispatcher returns a dispatcher. A nil importer synthesizes plain
// constants.
func NewDispatcher(config Config, registry *Registry, importer cil.Importer, seed int64) *Dispatcher {
	if importer == nil {
		importer = cil.DefaultImporter{}
	}
	return &Dispatcher{
		config:   config,
		registry: registry,
		importer: importer,
		seed:     seed,
		blocks:   &log.EveryN{N: blockTraceEvery},
	}
}

// Strategies names the strategies the dispatcher draws from.
func (d *Dispatcher) Strategies() []string {
	if d.registry == nil {
		return nil
	}
	return d.registry.Names()
}

// Mangle transforms body in place. On error body is left as it was.
func (d *Dispatcher) Mangle(body *cil.MethodBody) (*Result, error) {
	out, res, err := d.Transform(body)
	if err != nil {
		return res, err
	}
	if out != body {
		*body = *out
	}
	return res, nil
}

// Transform mangles a copy of body and returns it. An empty pool or a body
// without instructions returns body itself, unchanged.
func (d *Dispatcher) Transform(body *cil.MethodBody) (*cil.MethodBody, *Result, error) {
	res := &Result{Method: body.Name, Skipped: true}
	if !body.HasBody() {
		return body, res, nil
	}
	res.Before = len(body.Instructions)
	res.After = res.Before
	res.MaxStack = body.MaxStack

	rng := NewRand(d.seed, body.Name)
	strategy := d.registry.Pick(rng)
	if strategy == nil {
		return body, res, nil
	}
	res.Strategy = strategy.Name()
	res.Skipped = false
	logger := log.New("method", body.Name, "strategy", strategy.Name())

	work := body.Clone()
	cil.SimplifyBranches(work)
	flow, err := cil.ComputeFlow(work)
	if err != nil {
		return nil, res, errors.Wrapf(err, "method %s", body.Name)
	}
	root, err := BuildTree(work, flow)
	if err != nil {
		return nil, res, errors.Wrapf(err, "method %s", body.Name)
	}
	ctx := newContext(work, root, d.config, d.importer, rng)
	for _, b := range root.Regulars() {
		ctx.block = b
		if err := strategy.Mangle(ctx, b); err != nil {
			return nil, res, errors.Wrapf(err, "method %s: strategy %s", body.Name, strategy.Name())
		}
		log.TraceBy(d.blocks, "Mangled block", "method", body.Name, "block", b, "fragments", len(b.Fragments()))
	}
	ctx.block = nil

	if err := reassemble(ctx); err != nil {
		return nil, res, err
	}
	res.Blocks = len(root.Regulars())
	for _, b := range root.Regulars() {
		res.Fragments += len(b.Fragments())
	}
	res.Jumps = ctx.jumps
	res.After = len(work.Instructions)
	res.MaxStack = work.MaxStack
	logger.Debug("Mangled method", "blocks", res.Blocks, "fragments", res.Fragments,
		"jumps", res.Jumps, "before", res.Before, "after", res.After, "maxstack", res.MaxStack)
	return work, res, nil
}
