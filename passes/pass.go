// Package passes enriches parsed translation units: it builds the scope
// tree, resolves types, symbols and calls, infers missing declarations and
// constructs the evaluation order graph.
package passes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cpg-enrich/config"
	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// ErrNilTranslationUnit is returned when the pipeline is handed a nil unit.
var ErrNilTranslationUnit = errors.New("nil translation unit")

// Progress receives phase messages. The CLI's progress reporter satisfies it.
type Progress interface {
	Log(format string, args ...any)
}

type discardProgress struct{}

func (discardProgress) Log(string, ...any) {}

// Context is the state shared by all passes of one run: the type manager,
// the scope manager and everything the passes compute for the export.
type Context struct {
	Types     *graph.TypeManager
	Scopes    *scope.Manager
	Config    *config.Config
	Logger    *slog.Logger
	Progress  Progress
	Telemetry *Telemetry

	// Units are the translation units of the run, sorted by path.
	Units []*graph.TranslationUnitDeclaration

	// Filled in by the passes.
	Dependences []ControlDependence
	Metrics     []*FunctionMetrics
	Violations  []Violation

	inferrer *Inferrer
	current  *graph.TranslationUnitDeclaration
}

// NewContext creates the shared state of a run. Nil arguments fall back to
// defaults.
func NewContext(cfg *config.Config, logger *slog.Logger, prog Progress, tel *Telemetry) *Context {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if prog == nil {
		prog = discardProgress{}
	}
	if tel == nil {
		tel = NewTelemetry()
	}
	ctx := &Context{
		Types:     graph.NewTypeManager(),
		Scopes:    scope.NewManager(logger),
		Config:    cfg,
		Logger:    logger,
		Progress:  prog,
		Telemetry: tel,
	}
	ctx.Types.SetRecordLookup(ctx.Scopes)
	ctx.inferrer = &Inferrer{ctx: ctx}
	return ctx
}

// Inference returns the run's inference engine.
func (c *Context) Inference() *Inferrer { return c.inferrer }

// CurrentUnit returns the translation unit being processed.
func (c *Context) CurrentUnit() *graph.TranslationUnitDeclaration { return c.current }

// eachUnit runs fn for every unit with the scope manager reset to global.
func (c *Context) eachUnit(fn func(tu *graph.TranslationUnitDeclaration)) {
	for _, tu := range c.Units {
		c.current = tu
		c.Scopes.ResetToGlobal(tu)
		fn(tu)
	}
	c.current = nil
}

// structural logs a structural anomaly and counts it.
func (c *Context) structural(pass string, n graph.Node, err error) {
	c.Logger.Error("structural error", "pass", pass, "node", graph.Describe(n), "error", err)
	c.Telemetry.StructuralErrors.WithLabelValues(pass).Inc()
}

// Pass is one enrichment step over all translation units.
type Pass interface {
	Name() string
	Run(ctx *Context) error
}

// DefaultPasses returns the enrichment passes in execution order. Pruning and
// the invariant check are included when the configuration enables them.
func DefaultPasses(cfg *config.Config) []Pass {
	ps := []Pass{
		&ScopePass{},
		&TypeResolver{},
		&SymbolResolver{},
		&CallResolver{},
		&EvaluationOrderGraphPass{},
	}
	if cfg.EOG.PruneUnreachable {
		ps = append(ps, &UnreachableEOGPass{})
	}
	if cfg.EOG.CheckInvariant {
		ps = append(ps, &EOGInvariantPass{})
	}
	return append(ps, &ControlDependencePass{}, &MetricsPass{})
}

// Pipeline runs passes over a set of translation units.
type Pipeline struct {
	ctx    *Context
	passes []Pass
}

// NewPipeline creates a pipeline over ctx. Without explicit passes the
// default sequence for ctx.Config is used.
func NewPipeline(ctx *Context, passes ...Pass) *Pipeline {
	if len(passes) == 0 {
		passes = DefaultPasses(ctx.Config)
	}
	return &Pipeline{ctx: ctx, passes: passes}
}

// Context returns the pipeline's shared state.
func (p *Pipeline) Context() *Context { return p.ctx }

// Run enriches units. Local anomalies are logged and counted; only a nil
// unit or cancellation aborts the run. The type registry is reset at the end
// when auto reset is on.
func (p *Pipeline) Run(ctx context.Context, units []*graph.TranslationUnitDeclaration) error {
	for i, tu := range units {
		if tu == nil {
			return fmt.Errorf("unit %d: %w", i, ErrNilTranslationUnit)
		}
	}
	p.ctx.Units = units

	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", pass.Name(), err)
		}
		start := time.Now()
		if err := pass.Run(p.ctx); err != nil {
			return fmt.Errorf("%s: %w", pass.Name(), err)
		}
		p.ctx.Telemetry.PassDuration.WithLabelValues(pass.Name()).Observe(time.Since(start).Seconds())
	}

	if p.ctx.Types.AutoReset() {
		p.ctx.Types.Reset()
	}
	return nil
}
