package inbox

import (
	"context"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/issuesrc"
	"github.com/robfig/cron/v3"
)

// Poller submits labeled tracker issues on a cron cadence. Submission is
// idempotent per issue, so seeing the same open issue on every poll is
// harmless.
type Poller struct {
	lister    issuesrc.Lister
	submitter Submitter
	schedule  cron.Schedule
	lastPoll  time.Time

	onError func(err error)
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NewPoller creates a poller with the given cron expression
func NewPoller(lister issuesrc.Lister, submitter Submitter, cronExpr string, onError func(err error)) (*Poller, error) {
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Poller{
		lister:    lister,
		submitter: submitter,
		schedule:  schedule,
		onError:   onError,
	}, nil
}

// ShouldPoll reports whether the schedule has come due since the last poll
func (p *Poller) ShouldPoll(now time.Time) bool {
	last := p.lastPoll
	if last.IsZero() {
		return true
	}
	return now.After(p.schedule.Next(last))
}

// Start runs the poll loop until ctx is cancelled
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		if p.ShouldPoll(time.Now()) {
			p.poll(ctx)
			p.lastPoll = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	issues, err := p.lister.List(ctx)
	if err != nil {
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	for _, issue := range issues {
		if _, err := p.submitter.Submit(issue); err != nil && p.onError != nil {
			p.onError(err)
		}
	}
}
