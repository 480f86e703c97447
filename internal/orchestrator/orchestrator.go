// Package orchestrator drives a run from issue intake to a submitted
// change set: acquire workspace, plan, iterate every task through the
// implementer/reviewer loop with validation, assemble the result. Every
// state transition is checkpointed so a crashed run resumes instead of
// restarting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/githost"
	"github.com/hochfrequenz/issue-orchestrator/internal/plan"
	"github.com/hochfrequenz/issue-orchestrator/internal/roles"
	"github.com/hochfrequenz/issue-orchestrator/internal/runstore"
	"github.com/hochfrequenz/issue-orchestrator/internal/workspace"
)

// errCancelled unwinds the state machine when a cancellation request is
// honored at a checkpoint boundary
var errCancelled = errors.New("run cancelled")

// RoleSet bundles the roles bound to one workspace
type RoleSet struct {
	Implementer roles.Implementer
	Reviewer    roles.Reviewer
	Validators  *roles.Validators
}

// RoleFactory builds roles. The planner needs no workspace; the rest are
// bound to one via its opaque handle.
type RoleFactory interface {
	Planner() roles.Planner
	ForWorkspace(ws *workspace.Workspace) RoleSet
}

// Config holds orchestrator tuning
type Config struct {
	MaxIterations  int
	CallTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MaxIterations:  domain.DefaultMaxIterations,
		CallTimeout:    10 * time.Minute,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
	}
}

// Orchestrator is the run state machine
type Orchestrator struct {
	store      *runstore.Store
	workspaces *workspace.Manager
	host       githost.Host
	factory    RoleFactory
	cfg        Config
	events     Sink
}

// New creates an orchestrator
func New(store *runstore.Store, workspaces *workspace.Manager, host githost.Host, factory RoleFactory, cfg Config, events Sink) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = domain.DefaultMaxIterations
	}
	return &Orchestrator{
		store:      store,
		workspaces: workspaces,
		host:       host,
		factory:    factory,
		cfg:        cfg,
		events:     events,
	}
}

// Submit is the sole entry point by which inbound transports hand work to
// the orchestrator. Submitting an issue that already has a live run
// returns that run's id instead of starting a second one.
func (o *Orchestrator) Submit(issue *domain.Issue) (string, error) {
	if err := issue.Validate(); err != nil {
		return "", err
	}
	if err := o.store.UpsertIssue(issue); err != nil {
		return "", err
	}

	if existing, err := o.store.ActiveRunForIssue(issue.ID); err != nil {
		return "", err
	} else if existing != nil {
		return existing.ID, nil
	}

	now := time.Now()
	run := &domain.Run{
		ID:          uuid.New().String(),
		IssueID:     issue.ID,
		Repo:        issue.Repo,
		BaseRef:     issue.BaseRef,
		Status:      domain.RunCreated,
		CurrentTask: -1,
		StartedAt:   &now,
	}
	run.Branch = githost.BranchName(run.ID)
	if err := o.store.CreateRun(run); err != nil {
		return "", err
	}
	if err := o.checkpoint(run, nil, nil); err != nil && !errors.Is(err, errCancelled) {
		return "", err
	}
	o.emit(Event{Type: EventRunStateChanged, RunID: run.ID, TaskIndex: -1, State: string(run.Status)})
	return run.ID, nil
}

// Cancel requests cooperative cancellation of a run. The request takes
// effect at the orchestrator's next checkpoint boundary; in-flight role
// calls finish or time out first.
func (o *Orchestrator) Cancel(runID string) error {
	run, err := o.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if run.Status.Terminal() {
		return nil
	}
	return o.store.RequestCancel(runID)
}

// ProcessRun advances a run until it reaches a terminal state, suspends
// for human input, or the context is cancelled. Safe to call again on the
// same run: it picks up from persisted state.
func (o *Orchestrator) ProcessRun(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	err = o.advance(ctx, run)
	if errors.Is(err, errCancelled) {
		return nil
	}
	return err
}

func (o *Orchestrator) advance(ctx context.Context, run *domain.Run) error {
	for {
		switch run.Status {
		case domain.RunCreated:
			if err := o.transition(run, domain.RunPlanning, ""); err != nil {
				return err
			}

		case domain.RunPlanning:
			if err := o.planRun(ctx, run); err != nil {
				return err
			}

		case domain.RunInProgress:
			if err := o.processTasks(ctx, run); err != nil {
				return err
			}

		case domain.RunAwaitingReview, domain.RunNeedsClarification:
			// Suspended pending human input; nothing to drive
			return nil

		default:
			// Terminal
			return nil
		}
	}
}

// planRun invokes the planner and persists the resulting task list. A
// clarification request suspends the run before any workspace exists.
func (o *Orchestrator) planRun(ctx context.Context, run *domain.Run) error {
	// A plan persisted before a crash is reused, not regenerated
	existing, err := o.store.ListTasks(run.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return o.transition(run, domain.RunInProgress, "")
	}

	issue, err := o.store.GetIssue(run.IssueID)
	if err != nil {
		return err
	}
	if issue == nil {
		return fmt.Errorf("issue %s not found for run %s", run.IssueID, run.ID)
	}

	var drafts []domain.TaskDraft
	planErr := o.callRole(ctx, func(ctx context.Context) error {
		var err error
		drafts, err = o.factory.Planner().Plan(ctx, issue)
		return err
	})
	if planErr != nil {
		if errors.Is(planErr, domain.ErrClarificationNeeded) {
			o.log(run.ID, "info", "planner needs clarification: "+planErr.Error())
			o.emit(Event{Type: EventNeedsAttention, RunID: run.ID, TaskIndex: -1, State: string(domain.RunNeedsClarification), Message: planErr.Error()})
			return o.transition(run, domain.RunNeedsClarification, planErr.Error())
		}
		if ctx.Err() != nil {
			return planErr
		}
		// Planning could not complete for infrastructure reasons
		return o.failRun(run, fmt.Errorf("planning: %w", planErr))
	}

	now := time.Now()
	tasks := make([]*domain.Task, len(drafts))
	for i, d := range drafts {
		tasks[i] = &domain.Task{
			RunID:     run.ID,
			Index:     i,
			Title:     d.Title,
			Criterion: d.Criterion,
			Status:    domain.TaskPending,
			DependsOn: d.DependsOn,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if err := o.store.InsertTasks(tasks); err != nil {
		return err
	}
	o.log(run.ID, "info", fmt.Sprintf("planned %d tasks", len(tasks)))
	return o.transition(run, domain.RunInProgress, "")
}

// processTasks drives the per-task iteration loops in plan order until
// the run completes, stalls, or fails
func (o *Orchestrator) processTasks(ctx context.Context, run *domain.Run) error {
	ws, err := o.workspaces.Acquire(ctx, run)
	if err != nil {
		return o.failRun(run, err)
	}
	set := o.factory.ForWorkspace(ws)

	for {
		tasks, err := o.store.ListTasks(run.ID)
		if err != nil {
			return err
		}

		// Tasks downstream of a blocked one can never run
		for _, idx := range plan.BlockDependents(tasks) {
			t := tasks[idx]
			if err := o.store.UpdateTaskStatus(run.ID, idx, domain.TaskBlocked, t.Iterations, "depends on blocked task"); err != nil {
				return err
			}
			t.Status = domain.TaskBlocked
			o.emit(Event{Type: EventTaskStateChanged, RunID: run.ID, TaskIndex: idx, State: string(domain.TaskBlocked)})
		}

		if plan.AllApproved(tasks) {
			return o.completeRun(ctx, run, ws, tasks)
		}

		// A task interrupted mid-iteration resumes before anything new starts
		next := plan.InFlight(tasks)
		if next == -1 {
			next = plan.NextReady(tasks)
		}
		if next == -1 {
			// Blocked tasks leave the run paused for human resolution
			if plan.AnyBlocked(tasks) {
				o.emit(Event{Type: EventNeedsAttention, RunID: run.ID, TaskIndex: -1, State: string(domain.RunAwaitingReview), Message: "run has blocked tasks"})
			}
			return o.transition(run, domain.RunAwaitingReview, "")
		}

		if err := o.store.SetRunCurrentTask(run.ID, next); err != nil {
			return err
		}
		run.CurrentTask = next

		if err := o.runTask(ctx, run, ws, set, tasks[next]); err != nil {
			return err
		}
	}
}

// completeRun assembles one reviewable change set referencing each task's
// final artifact, submits it, and releases the workspace
func (o *Orchestrator) completeRun(ctx context.Context, run *domain.Run, ws *workspace.Workspace, tasks []*domain.Task) error {
	issue, err := o.store.GetIssue(run.IssueID)
	if err != nil {
		return err
	}

	change := domain.ChangeSet{
		RunID:  run.ID,
		Branch: run.Branch,
		Title:  issue.Title,
	}
	body := fmt.Sprintf("Resolves issue %s.\n\n", run.IssueID)
	for _, t := range tasks {
		patch, err := o.store.LatestArtifact(run.ID, t.Index, "patch")
		if err != nil {
			return err
		}
		if patch == nil {
			return fmt.Errorf("run %s: approved task %d has no patch artifact", run.ID, t.Index)
		}
		change.ArtifactIDs = append(change.ArtifactIDs, patch.ID)
		body += fmt.Sprintf("- %s (artifact %s)\n", t.Title, patch.ID)
	}
	change.Body = body

	var url string
	err = o.callRole(ctx, func(ctx context.Context) error {
		var err error
		url, err = o.host.SubmitForReview(ctx, ws.WorkDir(), change.Branch, change.Title, change.Body)
		return err
	})
	if err != nil {
		return o.failRun(run, &domain.WorkspaceError{RunID: run.ID, Op: "submit change set", Err: err})
	}

	if err := o.store.SetRunReviewURL(run.ID, url); err != nil {
		return err
	}
	run.ReviewURL = url
	o.log(run.ID, "info", "change set submitted: "+url)

	if err := o.transition(run, domain.RunCompleted, ""); err != nil && !errors.Is(err, errCancelled) {
		return err
	}
	return o.workspaces.Release(run.ID)
}

// failRun moves a run to failed and releases its workspace immediately
func (o *Orchestrator) failRun(run *domain.Run, cause error) error {
	o.log(run.ID, "error", cause.Error())
	if err := o.store.UpdateRunStatus(run.ID, domain.RunFailed, cause.Error()); err != nil {
		return err
	}
	run.Status = domain.RunFailed
	run.Error = cause.Error()
	o.emit(Event{Type: EventRunStateChanged, RunID: run.ID, TaskIndex: run.CurrentTask, State: string(domain.RunFailed), Message: cause.Error()})
	return o.workspaces.Release(run.ID)
}

// transition moves the run to a new state and checkpoints it
func (o *Orchestrator) transition(run *domain.Run, status domain.RunStatus, errMsg string) error {
	if err := o.store.UpdateRunStatus(run.ID, status, errMsg); err != nil {
		return err
	}
	run.Status = status
	run.Error = errMsg
	o.emit(Event{Type: EventRunStateChanged, RunID: run.ID, TaskIndex: run.CurrentTask, State: string(status)})
	return o.checkpoint(run, nil, nil)
}

// checkpoint persists the durable snapshot and honors any pending
// cancellation request. This is the commit point: everything since the
// previous checkpoint must be safely re-executable.
func (o *Orchestrator) checkpoint(run *domain.Run, task *domain.Task, it *domain.Iteration) error {
	taskIdx := -1
	iterIdx := 0
	if task != nil {
		taskIdx = task.Index
	}
	if it != nil {
		taskIdx = it.TaskIndex
		iterIdx = it.Index
	}
	snap := runstore.Snapshot{RunStatus: run.Status, CurrentTask: run.CurrentTask}
	if task != nil {
		snap.TaskStatus = task.Status
		snap.Iterations = task.Iterations
	}
	cp := &runstore.Checkpoint{
		RunID:          run.ID,
		TaskIndex:      taskIdx,
		IterationIndex: iterIdx,
		Snapshot:       snap,
	}
	if err := o.store.AppendCheckpoint(cp); err != nil {
		return err
	}

	if run.Status.Terminal() {
		return nil
	}

	// Cancellation is honored here, at the checkpoint boundary
	fresh, err := o.store.GetRun(run.ID)
	if err != nil {
		return err
	}
	if fresh != nil && fresh.CancelRequested {
		if err := o.store.UpdateRunStatus(run.ID, domain.RunCancelled, ""); err != nil {
			return err
		}
		run.Status = domain.RunCancelled
		o.emit(Event{Type: EventRunStateChanged, RunID: run.ID, TaskIndex: run.CurrentTask, State: string(domain.RunCancelled)})
		if err := o.workspaces.Release(run.ID); err != nil {
			return err
		}
		return errCancelled
	}
	return nil
}

func (o *Orchestrator) log(runID, level, message string) {
	if err := o.store.AppendLog(runID, level, message); err != nil {
		fmt.Printf("Warning: failed to persist log for %s: %v\n", runID, err)
	}
}
