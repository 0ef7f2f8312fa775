package scenario

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/yanishalloum/memoryAllocation/internal/blockpool"
	"github.com/yanishalloum/memoryAllocation/internal/pooldiag"
	"github.com/yanishalloum/memoryAllocation/internal/progress"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Capacity and BlockSize apply to scenarios that leave them unset. Zero
	// selects the package defaults.
	Capacity  int
	BlockSize int
	// Output receives the rendering of print steps. Nil discards it.
	Output   io.Writer
	Logger   zerolog.Logger
	Progress progress.Tracker
	// Parallel bounds how many scenarios RunAll executes at once.
	Parallel int
}

func (o Options) geometry(sc *Scenario) geometry {
	g := geometry{capacity: o.Capacity, blockSize: o.BlockSize}
	if g.capacity == 0 {
		g.capacity = blockpool.DefaultCapacity
	}
	if g.blockSize == 0 {
		g.blockSize = blockpool.DefaultBlockSize
	}
	if sc.Capacity != nil {
		g.capacity = *sc.Capacity
	}
	if sc.BlockSize != nil {
		g.blockSize = *sc.BlockSize
	}
	return g
}

type StepResult struct {
	Op        Op               `json:"op"`
	Index     int64            `json:"index"`
	Length    int              `json:"length,omitempty"`
	Error     string           `json:"error"`
	Available int              `json:"available"`
	Head      int64            `json:"head"`
	Report    *pooldiag.Report `json:"report,omitempty"`
	Failures  []string         `json:"failures,omitempty"`
}

type Result struct {
	Name     string       `json:"name"`
	Steps    []StepResult `json:"steps"`
	Failures []string     `json:"failures,omitempty"`

	errs *multierror.Error
}

// Err reports every expectation that did not hold, or nil.
func (r *Result) Err() error {
	return r.errs.ErrorOrNil()
}

func (r *Result) fail(step int, format string, args ...any) {
	msg := fmt.Sprintf("step %d: %s", step+1, fmt.Sprintf(format, args...))
	r.Steps[step].Failures = append(r.Steps[step].Failures, msg)
	r.Failures = append(r.Failures, msg)
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %s", r.Name, msg))
}

// Run executes sc against a fresh pool.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	g := opts.geometry(sc)
	p, err := blockpool.New(g.capacity, blockpool.WithBlockSize(g.blockSize), blockpool.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return runOn(ctx, p, sc, opts)
}

func runOn(ctx context.Context, p *blockpool.Pool, sc *Scenario, opts Options) (*Result, error) {
	log := opts.Logger.With().Str("scenario", sc.Name).Logger()
	if sc.FreeList != nil {
		if err := p.Seed(sc.seed()); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}

	res := &Result{Name: sc.Name, Steps: make([]StepResult, len(sc.Steps))}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out := &res.Steps[i]
		out.Op = st.Op
		out.Index = int64(blockpool.NullBlock)

		var err error
		switch st.Op {
		case OpInit:
			p.Init()
		case OpAllocate:
			var idx blockpool.BlockIndex
			idx, err = p.Allocate(st.Size)
			out.Index = int64(idx)
		case OpFree:
			err = p.Free(blockpool.BlockIndex(st.Start), st.Size)
		case OpRunLength:
			out.Length, err = p.RunLength(blockpool.BlockIndex(st.Start))
		case OpReorder:
			p.Reorder()
		case OpPrint:
			report := pooldiag.Snapshot(p)
			out.Report = &report
			if opts.Output != nil {
				if werr := pooldiag.Render(opts.Output, p); werr != nil {
					return res, fmt.Errorf("render pool: %w", werr)
				}
			}
		}
		out.Error = errName(err)
		out.Available = p.Available()
		out.Head = int64(p.Head())
		log.Debug().Int("step", i+1).Str("op", string(st.Op)).Str("result", out.Error).Msg("step")

		if verr := p.Validate(); verr != nil {
			res.fail(i, "pool invariant violated: %v", verr)
		}
		if st.Expect != nil {
			check(res, i, st.Expect, p)
		}
	}

	if err := res.Err(); err != nil {
		log.Info().Int("failures", len(res.Failures)).Msg("scenario failed")
	} else {
		log.Debug().Msg("scenario passed")
	}
	return res, nil
}

func check(res *Result, i int, exp *Expect, p *blockpool.Pool) {
	out := &res.Steps[i]
	if exp.Index != nil && *exp.Index != out.Index {
		res.fail(i, "index = %d, want %d", out.Index, *exp.Index)
	}
	if exp.Error != nil && *exp.Error != out.Error {
		res.fail(i, "error = %s, want %s", out.Error, *exp.Error)
	}
	if exp.Length != nil && *exp.Length != out.Length {
		res.fail(i, "run length = %d, want %d", out.Length, *exp.Length)
	}
	if exp.Available != nil && *exp.Available != out.Available {
		res.fail(i, "available = %d, want %d", out.Available, *exp.Available)
	}
	if exp.Head != nil && *exp.Head != out.Head {
		res.fail(i, "head = %d, want %d", out.Head, *exp.Head)
	}
	if exp.FreeList != nil {
		var got []int64
		for b := range p.FreeList() {
			got = append(got, int64(b))
		}
		if !slices.Equal(got, *exp.FreeList) {
			res.fail(i, "free list = %v, want %v", got, *exp.FreeList)
		}
	}
}

// RunAll executes the scenarios concurrently, each on its own pool, and
// returns their results in input order. Pools are recycled between scenarios
// of the same geometry.
func RunAll(ctx context.Context, scenarios []*Scenario, opts Options) ([]*Result, error) {
	tracker := opts.Progress
	if tracker == nil {
		tracker = progress.NoopTracker{}
	}
	if opts.Output != nil {
		opts.Output = &syncWriter{w: opts.Output}
	}
	parallel := max(opts.Parallel, 1)
	cache := newPoolCache(parallel, opts.Logger)

	tracker.SetMessage("running scenarios")
	tracker.SetTotal(int64(len(scenarios)))
	tracker.SetDone(0)

	results := make([]*Result, len(scenarios))
	var (
		mu   sync.Mutex
		done int
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, sc := range scenarios {
		eg.Go(func() error {
			p, err := cache.Get(opts.geometry(sc))
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			defer cache.Put(p)

			res, err := runOn(ctx, p, sc, opts)
			if err != nil {
				return err
			}
			results[i] = res

			mu.Lock()
			done++
			tracker.SetDone(done)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	tracker.MarkFinished()
	return results, nil
}

// Failed combines the failures of all results, or returns nil.
func Failed(results []*Result) error {
	var errs *multierror.Error
	for _, r := range results {
		if err := r.Err(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
