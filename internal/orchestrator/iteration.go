package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/roles"
	"github.com/hochfrequenz/issue-orchestrator/internal/workspace"
)

// inconclusiveLimit bounds how many inconclusive validation rounds a task
// absorbs before it is surfaced for human review. Inconclusive rounds do
// not consume iteration budget, so without this bound flaky
// infrastructure could spin a task forever.
const inconclusiveLimit = 3

// noOpReason marks iterations rejected for carrying an empty patch. The
// resume path keys on it to tell genuine no-op proposals apart from
// failed calls, whose persisted patch is also empty.
const noOpReason = "no-op proposal"

// runTask drives one task through the propose/review protocol until it is
// approved or blocked. Every cycle is recorded as an append-only
// iteration and checkpointed before the next one starts.
func (o *Orchestrator) runTask(ctx context.Context, run *domain.Run, ws *workspace.Workspace, set RoleSet, task *domain.Task) error {
	if err := o.setTaskStatus(run, task, domain.TaskInDevelopment, ""); err != nil {
		return err
	}

	// Resume mid-task: rebuild feedback and the no-progress window from
	// the persisted iterations
	prior, err := o.store.ListIterations(run.ID, task.Index)
	if err != nil {
		return err
	}
	var feedback []string
	prevEmpty := false
	inconclusive := 0
	iterIdx := 0
	for _, it := range prior {
		iterIdx = it.Index
		if !it.Verdict.Approve {
			feedback = it.Verdict.Reasons
		}
		prevEmpty = isNoOp(it)
		if prevEmpty {
			feedback = []string{"the previous proposal contained no change; produce a concrete patch"}
		}
		if it.Tests == domain.TestInconclusive {
			inconclusive++
		}
	}

	for task.Iterations < o.cfg.MaxIterations {
		iterIdx++
		it := &domain.Iteration{
			RunID:     run.ID,
			TaskIndex: task.Index,
			Index:     iterIdx,
			StartedAt: time.Now(),
		}

		// Propose
		var patch domain.Patch
		proposeErr := o.callRole(ctx, func(ctx context.Context) error {
			var err error
			patch, err = set.Implementer.Propose(ctx, task, feedback)
			return err
		})
		if proposeErr != nil {
			if ctx.Err() != nil {
				return proposeErr
			}
			// Exhausted retries consume one unit of budget as a reject
			it.Verdict = domain.Reject(rejectReason(proposeErr))
			feedback = it.Verdict.Reasons
			prevEmpty = false
			if err := o.recordIteration(run, task, it, true); err != nil {
				return err
			}
			continue
		}
		it.Patch = patch

		// No-progress detector: two consecutive no-op proposals block the
		// task immediately instead of burning the remaining budget
		if patch.IsEmpty() {
			if prevEmpty {
				it.Verdict = domain.Reject(noOpReason)
				if err := o.recordIteration(run, task, it, true); err != nil {
					return err
				}
				return o.blockTask(run, task, domain.ErrNoProgress.Error())
			}
			prevEmpty = true
			it.Verdict = domain.Reject(noOpReason)
			feedback = []string{"the previous proposal contained no change; produce a concrete patch"}
			if err := o.recordIteration(run, task, it, true); err != nil {
				return err
			}
			continue
		}
		prevEmpty = false

		if err := o.appendPatchArtifact(run, task, it); err != nil {
			return err
		}
		if err := o.setTaskStatus(run, task, domain.TaskInReview, ""); err != nil {
			return err
		}

		// Independent review
		var verdict domain.Verdict
		reviewErr := o.callRole(ctx, func(ctx context.Context) error {
			var err error
			verdict, err = set.Reviewer.Evaluate(ctx, task, patch)
			return err
		})
		if reviewErr != nil {
			if ctx.Err() != nil {
				return reviewErr
			}
			verdict = domain.Reject(rejectReason(reviewErr))
		}
		it.Verdict = verdict

		if !verdict.Approve {
			feedback = verdict.Reasons
			if err := o.recordIteration(run, task, it, true); err != nil {
				return err
			}
			if err := o.setTaskStatus(run, task, domain.TaskInDevelopment, ""); err != nil {
				return err
			}
			continue
		}

		// Validators run before final approval
		var result roles.ValidationResult
		valErr := o.callRole(ctx, func(ctx context.Context) error {
			var err error
			result, err = set.Validators.Validate(ctx, task, patch)
			return err
		})
		if valErr != nil {
			if ctx.Err() != nil {
				return valErr
			}
			it.Verdict = domain.Reject(rejectReason(valErr))
			feedback = it.Verdict.Reasons
			if err := o.recordIteration(run, task, it, true); err != nil {
				return err
			}
			continue
		}
		it.Tests = result.Tests

		if result.Tests == domain.TestInconclusive && result.RequirementMet {
			// Infrastructure noise never consumes iteration budget
			inconclusive++
			o.log(run.ID, "warn", fmt.Sprintf("task %d iteration %d: tests inconclusive (%s)", task.Index, it.Index, result.TestDetail))
			if err := o.recordIteration(run, task, it, false); err != nil {
				return err
			}
			if inconclusive >= inconclusiveLimit {
				o.emit(Event{Type: EventNeedsAttention, RunID: run.ID, TaskIndex: task.Index, Iteration: it.Index, Message: "tests repeatedly inconclusive"})
				return o.blockTask(run, task, "tests repeatedly inconclusive")
			}
			continue
		}

		if !result.Passed() {
			it.Verdict = domain.Reject(result.RejectReasons()...)
			feedback = it.Verdict.Reasons
			if err := o.recordIteration(run, task, it, true); err != nil {
				return err
			}
			if err := o.setTaskStatus(run, task, domain.TaskInDevelopment, ""); err != nil {
				return err
			}
			continue
		}

		// Approved: record the change on the run's branch, then finalize
		if err := o.recordIteration(run, task, it, true); err != nil {
			return err
		}
		commitErr := o.callRole(ctx, func(ctx context.Context) error {
			msg := fmt.Sprintf("task %d: %s", task.Index, task.Title)
			return o.host.RecordChange(ctx, ws.WorkDir(), run.Branch, patch, msg)
		})
		if commitErr != nil {
			return o.failRun(run, &domain.WorkspaceError{RunID: run.ID, Op: "record change", Err: commitErr})
		}
		return o.setTaskStatus(run, task, domain.TaskApproved, "")
	}

	return o.blockTask(run, task, domain.ErrIterationBudget.Error())
}

// recordIteration persists the iteration, optionally counting it against
// the task's budget, and checkpoints
func (o *Orchestrator) recordIteration(run *domain.Run, task *domain.Task, it *domain.Iteration, countsBudget bool) error {
	if err := o.store.AppendIteration(it); err != nil {
		return err
	}
	if countsBudget {
		task.Iterations++
		if err := o.store.UpdateTaskStatus(run.ID, task.Index, task.Status, task.Iterations, task.BlockedFor); err != nil {
			return err
		}
	}
	o.emit(Event{Type: EventIteration, RunID: run.ID, TaskIndex: task.Index, Iteration: it.Index, State: string(task.Status)})
	return o.checkpoint(run, task, it)
}

// appendPatchArtifact stores the proposed patch as an append-only artifact
func (o *Orchestrator) appendPatchArtifact(run *domain.Run, task *domain.Task, it *domain.Iteration) error {
	return o.store.AppendArtifact(&domain.Artifact{
		ID:        fmt.Sprintf("%s/%d/%d/patch", run.ID, task.Index, it.Index),
		RunID:     run.ID,
		TaskIndex: task.Index,
		Iteration: it.Index,
		Kind:      "patch",
		Content:   it.Patch.Diff,
		CreatedAt: time.Now(),
	})
}

func (o *Orchestrator) setTaskStatus(run *domain.Run, task *domain.Task, status domain.TaskStatus, blockedFor string) error {
	task.Status = status
	task.BlockedFor = blockedFor
	task.UpdatedAt = time.Now()
	if err := o.store.UpdateTaskStatus(run.ID, task.Index, status, task.Iterations, blockedFor); err != nil {
		return err
	}
	o.emit(Event{Type: EventTaskStateChanged, RunID: run.ID, TaskIndex: task.Index, State: string(status)})
	return o.checkpoint(run, task, nil)
}

// blockTask marks a task blocked and surfaces it for human review
func (o *Orchestrator) blockTask(run *domain.Run, task *domain.Task, reason string) error {
	o.log(run.ID, "warn", fmt.Sprintf("task %d blocked: %s", task.Index, reason))
	o.emit(Event{Type: EventNeedsAttention, RunID: run.ID, TaskIndex: task.Index, State: string(domain.TaskBlocked), Message: reason})
	return o.setTaskStatus(run, task, domain.TaskBlocked, reason)
}

// isNoOp reports whether a persisted iteration was rejected for an empty
// proposal, as opposed to a failed or timed-out call
func isNoOp(it *domain.Iteration) bool {
	return !it.Verdict.Approve && len(it.Verdict.Reasons) == 1 && it.Verdict.Reasons[0] == noOpReason
}
