package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/neurodesk/texttemplate/pkg/data"
	"github.com/neurodesk/texttemplate/pkg/netcache"
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"golang.org/x/sync/errgroup"
)

// Runner executes the jobs of a manifest.
type Runner struct {
	Engine *texttemplate.Engine
	// BaseDir resolves relative template, data and output paths, usually
	// the directory of the manifest file.
	BaseDir string
	// Cache fetches templates and data given as URLs. Optional.
	Cache  *netcache.Cache
	Logger *slog.Logger
	// DryRun renders every job without writing outputs.
	DryRun bool
}

// Result describes one finished job.
type Result struct {
	Job    string
	Output string
	Bytes  int
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) path(p string) string {
	if netcache.IsURL(p) || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}

// Run registers the manifest's filter aliases on the engine and renders
// all jobs concurrently. The first failing job cancels the rest. Results
// are returned in manifest order.
func (r *Runner) Run(ctx context.Context, m *Manifest) ([]Result, error) {
	if r.Engine == nil {
		r.Engine = texttemplate.New(texttemplate.WithLogger(r.logger()))
	}
	aliases := make([]string, 0, len(m.Filters))
	for name := range m.Filters {
		aliases = append(aliases, name)
	}
	sort.Strings(aliases)
	for _, name := range aliases {
		if err := r.Engine.RegisterAlias(name, m.Filters[name]); err != nil {
			return nil, err
		}
	}

	loader := &data.Loader{Engine: r.Engine, Cache: r.Cache, Logger: r.logger()}
	shared, err := r.loadData(ctx, loader, m.Data)
	if err != nil {
		return nil, fmt.Errorf("shared data: %w", err)
	}
	vars, err := varsContext(&m.Vars, "vars")
	if err != nil {
		return nil, err
	}
	data.Merge(shared, vars)

	limit := m.Concurrency
	if limit == 0 {
		limit = runtime.NumCPU()
	}
	results := make([]Result, len(m.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range m.Jobs {
		g.Go(func() error {
			res, err := r.runJob(gctx, loader, shared, job)
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) loadData(ctx context.Context, loader *data.Loader, paths []string) (texttemplate.Context, error) {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = r.path(p)
	}
	return loader.LoadFiles(ctx, resolved...)
}

func (r *Runner) runJob(ctx context.Context, loader *data.Loader, shared texttemplate.Context, job Job) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	jobCtx := texttemplate.Context{}
	data.Merge(jobCtx, shared)
	own, err := r.loadData(ctx, loader, job.Data)
	if err != nil {
		return Result{}, err
	}
	data.Merge(jobCtx, own)
	vars, err := varsContext(&job.Vars, "vars")
	if err != nil {
		return Result{}, err
	}
	data.Merge(jobCtx, vars)

	src, err := r.loadTemplate(ctx, job.Template)
	if err != nil {
		return Result{}, err
	}
	out, err := r.Engine.Render(src, jobCtx, !job.Strict)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", job.Template, err)
	}
	target, err := job.Output.Render(jobCtx)
	if err != nil {
		return Result{}, fmt.Errorf("output path: %w", err)
	}
	target = r.path(target)
	res := Result{Job: job.Name, Output: target, Bytes: len(out)}
	if r.DryRun {
		r.logger().Info("rendered (dry run)", "job", job.Name, "output", target, "bytes", len(out))
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(target, []byte(out), 0o644); err != nil {
		return Result{}, err
	}
	r.logger().Info("rendered", "job", job.Name, "output", target, "bytes", len(out))
	return res, nil
}

func (r *Runner) loadTemplate(ctx context.Context, name string) (string, error) {
	if netcache.IsURL(name) {
		if r.Cache == nil {
			return "", fmt.Errorf("%s: remote templates require a cache", name)
		}
		return netcache.Loader{Cache: r.Cache, Context: ctx}.Load(name)
	}
	return texttemplate.DirLoader{Dir: r.BaseDir}.Load(name)
}
