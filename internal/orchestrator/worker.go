package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Pool drives runnable runs concurrently with a bounded number of
// workers. One run is only ever driven by one worker at a time; the
// claims map enforces that within a process, the runstore's persisted
// state across restarts.
type Pool struct {
	orch     *Orchestrator
	parallel int
	interval time.Duration

	claims chan struct{}
}

// NewPool creates a pool driving at most parallel runs at once
func NewPool(orch *Orchestrator, parallel int, interval time.Duration) *Pool {
	if parallel <= 0 {
		parallel = 1
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Pool{
		orch:     orch,
		parallel: parallel,
		interval: interval,
		claims:   make(chan struct{}, parallel),
	}
}

// Run scans for runnable runs and drives them until ctx is cancelled.
// Called once at startup after Resume.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	inFlight := make(map[string]bool)
	done := make(chan string, p.parallel)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		runs, err := p.orch.store.ListRuns("")
		if err != nil {
			return err
		}
		for _, run := range runs {
			if !runnable(run.Status) || inFlight[run.ID] {
				continue
			}
			select {
			case p.claims <- struct{}{}:
			case <-ctx.Done():
				_ = g.Wait()
				return ctx.Err()
			}
			inFlight[run.ID] = true
			id := run.ID
			g.Go(func() error {
				defer func() {
					<-p.claims
					done <- id
				}()
				if err := p.orch.ProcessRun(ctx, id); err != nil && ctx.Err() == nil {
					p.orch.log(id, "error", fmt.Sprintf("worker: %v", err))
				}
				return nil
			})
		}

	drain:
		for {
			select {
			case id := <-done:
				delete(inFlight, id)
			default:
				break drain
			}
		}

		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runnable reports whether the pool should pick up a run in this state.
// Suspended runs wait for a human; terminal runs are finished.
func runnable(s domain.RunStatus) bool {
	switch s {
	case domain.RunCreated, domain.RunPlanning, domain.RunInProgress:
		return true
	}
	return false
}

// Resume prepares persisted state for a fresh process: workspaces of
// terminal runs that crashed before release are cleaned up, and every
// non-terminal run is left for the pool to pick up from its latest
// checkpoint.
func (p *Pool) Resume(ctx context.Context) error {
	released, err := p.orch.workspaces.Sweep(p.orch.store)
	if err != nil {
		return fmt.Errorf("workspace sweep: %w", err)
	}
	for _, id := range released {
		p.orch.log(id, "info", "released workspace left behind by previous process")
	}

	runs, err := p.orch.store.ListRuns("")
	if err != nil {
		return err
	}
	for _, run := range runs {
		if run.Status.Terminal() || !runnable(run.Status) {
			continue
		}
		cp, err := p.orch.store.LatestCheckpoint(run.ID)
		if err != nil {
			return err
		}
		if cp != nil {
			p.orch.log(run.ID, "info", fmt.Sprintf("resuming %s run from checkpoint %d (task %d, iteration %d)", cp.Snapshot.RunStatus, cp.ID, cp.TaskIndex, cp.IterationIndex))
		}
	}
	return nil
}
