package domain

import (
	"fmt"
	"strings"
	"time"
)

// Issue is an external change request. Immutable once ingested: the
// orchestrator never writes back to it, it only derives a Run from it.
type Issue struct {
	ID         string
	Title      string
	Body       string
	Repo       string // owner/name of the target repository
	BaseRef    string // ref the working copy is created from, e.g. "main"
	ReceivedAt time.Time
}

// Validate checks the fields a run cannot be created without
func (i *Issue) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("issue: missing id")
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("issue %s: missing title", i.ID)
	}
	if i.Repo == "" {
		return fmt.Errorf("issue %s: missing target repo", i.ID)
	}
	return nil
}
