// Package inbox turns externally dropped issues into run submissions. Two
// intake paths feed the same Submit entry point: a watched directory of
// issue files and a cron-scheduled tracker poll.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Submitter accepts issues for processing
type Submitter interface {
	Submit(issue *domain.Issue) (string, error)
}

// issueFile is the on-disk shape of a dropped issue
type issueFile struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Repo    string `json:"repo"`
	BaseRef string `json:"base_ref"`
}

// Watcher submits issue files dropped into the inbox directory. Processed
// files are moved aside so a restart never resubmits them; Submit's
// per-issue idempotency covers the crash window in between.
type Watcher struct {
	dir       string
	submitter Submitter
	watcher   *fsnotify.Watcher
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	onError func(path string, err error)
}

// NewWatcher creates a watcher over the inbox directory
func NewWatcher(dir string, submitter Submitter, onError func(path string, err error)) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		dir:       dir,
		submitter: submitter,
		watcher:   fw,
		debounce:  500 * time.Millisecond, // writers rarely drop files atomically
		pending:   make(map[string]struct{}),
		onError:   onError,
	}, nil
}

// Start processes existing files, then watches for new ones until ctx is
// cancelled
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.drain(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return ctx.Err()
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isIssueFile(ev.Name) {
				continue
			}
			w.enqueue(ev.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ctx.Err()
			}
			w.fail("", err)
		}
	}
}

// enqueue debounces rapid write events on the same file
func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, p := range paths {
		w.process(p)
	}
}

// drain submits issue files already sitting in the inbox
func (w *Watcher) drain() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isIssueFile(entry.Name()) {
			continue
		}
		w.process(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) process(path string) {
	issue, err := ReadIssueFile(path)
	if err != nil {
		w.fail(path, err)
		return
	}
	if _, err := w.submitter.Submit(issue); err != nil {
		w.fail(path, err)
		return
	}
	// Move aside so a restart does not resubmit
	done := filepath.Join(w.dir, "processed")
	if err := os.MkdirAll(done, 0755); err == nil {
		err = os.Rename(path, filepath.Join(done, filepath.Base(path)))
	}
	if err != nil {
		w.fail(path, err)
	}
}

func (w *Watcher) fail(path string, err error) {
	if w.onError != nil {
		w.onError(path, err)
	}
}

// ReadIssueFile parses one dropped issue file
func ReadIssueFile(path string) (*domain.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f issueFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if f.BaseRef == "" {
		f.BaseRef = "main"
	}

	issue := &domain.Issue{
		ID:         f.ID,
		Title:      f.Title,
		Body:       f.Body,
		Repo:       f.Repo,
		BaseRef:    f.BaseRef,
		ReceivedAt: time.Now(),
	}
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	return issue, nil
}

func isIssueFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}
