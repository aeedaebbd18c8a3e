package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/emit"
	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/program"
	"github.com/opmodel/modprog/internal/relay"
	"github.com/opmodel/modprog/internal/resolve"
	"github.com/opmodel/modprog/internal/source"
	"github.com/opmodel/modprog/internal/spec"
)

// pipeline implements the Pipeline interface. Every run stops at the first
// error; only the load phase fans out.
type pipeline struct{}

// NewPipeline creates a new Pipeline implementation.
func NewPipeline() Pipeline {
	return &pipeline{}
}

// state carries the products of the early phases.
type state struct {
	opts    Options
	gomod   *resolve.GoModule
	loader  *source.Loader
	primary *merge.Module
	gen     *relay.Generator
	relays  []*relay.Relay
	plan    *Plan
}

// Plan implements Pipeline.
func (p *pipeline) Plan(ctx context.Context, opts Options) (*Plan, error) {
	st, err := p.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	return st.plan, nil
}

// Generate implements Pipeline.
//
// Phase sequence:
//  1. PARSE:     primary directive or --modules -> []spec.ModuleSpec
//  2. RESOLVE:   spec -> file path, wrapper package
//  3. LOAD:      file -> source.Unit (fallback and visibility checks)
//  4. RELAY:     instructions -> []*relay.Relay
//  5. MERGE:     primary + relays -> merged module
//  6. RENDER:    merged module -> formatted body
//  7. VALIDATE:  body -> program.Descriptor, program.Validate
//  8. EMIT:      body + registry -> generated file
func (p *pipeline) Generate(ctx context.Context, opts Options) (*Result, error) {
	st, err := p.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Phase 5: MERGE
	decls, err := st.gen.Decls(st.relays)
	if err != nil {
		return nil, phaseErr(PhaseRelay, "", err)
	}
	fw := st.gen.FrameworkAlias()
	merged, err := merge.Merge(st.primary, decls, st.gen.Imports.Added())
	if err != nil {
		return nil, phaseErr(PhaseMerge, "", err)
	}
	output.Debug("merged primary module", "decls", len(merged.Decls), "imports", len(merged.Imports))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 6: RENDER
	rendered, err := emit.Render(merged)
	if err != nil {
		return nil, phaseErr(PhaseRender, "", err)
	}

	// Phase 7: VALIDATE
	desc, err := program.NewParser(st.opts.Framework, rendered.Fset).ParseFile(rendered.File)
	if err != nil {
		return nil, phaseErr(PhaseValidate, "", err)
	}
	if err := program.Validate(desc); err != nil {
		return nil, phaseErr(PhaseValidate, "", err)
	}

	// Phase 8: EMIT
	src, err := rendered.Finish(desc, fw)
	if err != nil {
		return nil, phaseErr(PhaseEmit, "", err)
	}

	output.Debug("generated program", "instructions", len(desc.Instructions), "bytes", len(src))

	return &Result{
		Plan:         st.plan,
		Source:       src,
		Instructions: desc.Names(),
	}, nil
}

// prepare runs phases 1 to 4.
func (p *pipeline) prepare(ctx context.Context, opts Options) (*state, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Framework == "" {
		opts.Framework = program.DefaultFramework
	}
	opts.Mode, _ = relay.ParseMode(string(opts.Mode))

	primaryDir := filepath.Dir(opts.Primary)
	gomod, err := resolve.FindGoModule(primaryDir)
	if err != nil {
		return nil, phaseErr(PhaseResolve, "", err)
	}
	if opts.Build.ProjectRoot == "" {
		opts.Build.ProjectRoot = gomod.Dir
	}
	opts.Build = opts.Build.WithDefaults()
	output.Debug("resolved project", "root", opts.Build.ProjectRoot, "module", gomod.Path)

	st := &state{opts: opts, gomod: gomod, loader: source.NewLoader(gomod, opts.Framework)}

	directive, primary, err := st.loader.LoadPrimary(opts.Primary)
	if err != nil {
		return nil, phaseErr(PhaseLoad, "", err)
	}
	st.primary = primary

	// Phase 1: PARSE
	specs, err := parseSpecs(opts.Modules, directive, opts.Primary)
	if err != nil {
		return nil, phaseErr(PhaseParse, "", err)
	}

	primaryImport, err := gomod.ImportPath(primaryDir)
	if err != nil {
		return nil, phaseErr(PhaseResolve, "", err)
	}
	st.plan = &Plan{
		Primary:    opts.Primary,
		Package:    primary.Name,
		ImportPath: primaryImport,
		Mode:       opts.Mode,
	}

	// Phases 2 and 3: RESOLVE and LOAD
	targets, err := st.loadAll(ctx, specs)
	if err != nil {
		return nil, err
	}

	// Phase 4: RELAY
	st.gen = relay.NewGenerator(primary.File, primaryImport, opts.Framework, opts.Mode)
	st.relays, err = st.gen.Generate(targets)
	if err != nil {
		return nil, phaseErr(PhaseRelay, "", err)
	}

	if err := st.fillPlan(targets); err != nil {
		return nil, err
	}
	return st, nil
}

// loadAll loads every module in its own goroutine. Targets keep module
// order, and the first failing module in that order is reported.
func (st *state) loadAll(ctx context.Context, specs []spec.ModuleSpec) ([]relay.Target, error) {
	type result struct {
		target relay.Target
		err    error
	}

	results := make([]result, len(specs))
	var wg sync.WaitGroup
	for i, s := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}
			t, err := st.load(s)
			results[i] = result{target: t, err: err}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	targets := make([]relay.Target, 0, len(specs))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		targets = append(targets, r.target)
	}
	return targets, nil
}

func (st *state) load(s spec.ModuleSpec) (relay.Target, error) {
	name := s.Module.String()

	path := st.opts.Build.Resolve(s)
	output.Debug("resolved module", "module", name, "file", path)

	unit, err := st.loader.Load(path)
	if err != nil {
		return relay.Target{}, phaseErr(PhaseLoad, name, err)
	}
	if len(unit.Descriptor.Instructions) == 0 {
		output.Warn("module declares no instructions", "module", name, "file", path)
	}

	t := relay.Target{Spec: s, Unit: unit}
	if s.Wrapper == nil {
		return t, nil
	}

	w := &relay.Wrapper{Func: s.Wrapper.Last()}
	if len(s.Wrapper.Segments) > 1 {
		dir := st.opts.Build.WrapperDir(*s.Wrapper)
		pkg, err := st.loader.PackageName(dir)
		if err != nil {
			return relay.Target{}, phaseErr(PhaseResolve, name, err)
		}
		ip, err := st.gomod.ImportPath(dir)
		if err != nil {
			return relay.Target{}, phaseErr(PhaseResolve, name, err)
		}
		w.ImportPath, w.Package = ip, pkg
	}
	t.Wrapper = w
	return t, nil
}

func (st *state) fillPlan(targets []relay.Target) error {
	byModule := make(map[int][]*relay.Relay)
	i := 0
	for ti, t := range targets {
		for range t.Unit.Descriptor.Instructions {
			byModule[ti] = append(byModule[ti], st.relays[i])
			i++
		}
	}

	for ti, t := range targets {
		pm := PlannedModule{
			Spec:       t.Spec.String(),
			File:       t.Unit.Path,
			ImportPath: t.Unit.ImportPath,
			Prefix:     t.Spec.EffectivePrefix(),
			Relays:     []PlannedRelay{},
		}
		if t.Spec.Wrapper != nil {
			pm.Wrapper = t.Spec.Wrapper.String()
		}
		for _, r := range byModule[ti] {
			// The relay carries the instruction's doc, so a discriminator
			// directive applies to the relay name.
			ins := &program.Instruction{Name: r.Name, DiscriminatorDirective: r.Instruction.DiscriminatorDirective}
			d, err := ins.Discriminator()
			if err != nil {
				return phaseErr(PhaseRelay, t.Spec.Module.String(), err)
			}
			pm.Relays = append(pm.Relays, PlannedRelay{
				Name:          r.Name,
				Target:        r.Target,
				Discriminator: formatDiscriminator(d),
			})
		}
		st.plan.Modules = append(st.plan.Modules, pm)
	}
	return nil
}

// parseSpecs parses the --modules override, or the primary's directive.
func parseSpecs(override, directive, primary string) ([]spec.ModuleSpec, error) {
	if strings.TrimSpace(override) != "" {
		return spec.ParseModuleList(override)
	}
	if strings.TrimSpace(directive) == "" {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("%s has no %s directive", primary, source.DirectiveProgram), primary, "modules",
			"Add //modprog:program modules=[...] above the package clause, or pass --modules")
	}
	return spec.ParseModules(directive)
}

func formatDiscriminator(d []byte) string {
	parts := make([]string, len(d))
	for i, b := range d {
		parts[i] = fmt.Sprint(b)
	}
	return strings.Join(parts, ",")
}
