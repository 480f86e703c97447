package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/issue-orchestrator/internal/ci"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/inbox"
	"github.com/hochfrequenz/issue-orchestrator/internal/issuesrc"
	"github.com/hochfrequenz/issue-orchestrator/internal/notify"
	"github.com/hochfrequenz/issue-orchestrator/internal/orchestrator"
	"github.com/hochfrequenz/issue-orchestrator/tui"
	"github.com/hochfrequenz/issue-orchestrator/web/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	submitRepo    string
	submitBaseRef string
	runsStatus    string
	logsLimit     int
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator daemon with web API and issue intake",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	submitCmd := &cobra.Command{
		Use:   "submit ISSUE",
		Short: "Submit a tracker issue for orchestration",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmit,
	}
	submitCmd.Flags().StringVar(&submitRepo, "repo", "", "owner/name of the target repository")
	submitCmd.Flags().StringVar(&submitBaseRef, "base", "main", "base ref for the working copy")
	rootCmd.AddCommand(submitCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show run counts by state",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status")
	rootCmd.AddCommand(runsCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume RUN",
		Short: "Drive one run forward from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}
	rootCmd.AddCommand(resumeCmd)

	cancelCmd := &cobra.Command{
		Use:   "cancel RUN",
		Short: "Request cooperative cancellation of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	}
	rootCmd.AddCommand(cancelCmd)

	logsCmd := &cobra.Command{
		Use:   "logs RUN",
		Short: "Show a run's log",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogs,
	}
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "maximum lines")
	rootCmd.AddCommand(logsCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release workspaces left behind by crashed runs",
		RunE:  runSweep,
	}
	rootCmd.AddCommand(sweepCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", a.cfg.Web.Host, a.cfg.Web.Port)
	notifier := notify.NewMultiNotifier(
		notify.NewDesktopNotifier(a.cfg.Notifications.Desktop),
		notify.NewSlackNotifier(a.cfg.Notifications.SlackWebhook),
	)

	var server *api.Server
	notifySink := notify.ForEvents(notifier)
	sink := func(ev orchestrator.Event) {
		notifySink(ev)
		if server != nil {
			server.EventSink()(ev)
		}
	}

	orch := a.orchestrator(sink)
	server = api.NewServer(a.store, orch, ci.NewGHReader(), addr)

	pool := orchestrator.NewPool(orch, a.cfg.General.MaxParallelRuns, 5*time.Second)
	if err := pool.Resume(ctx); err != nil {
		return err
	}

	watcher, err := inbox.NewWatcher(a.cfg.Inbox.Dir, orch, func(path string, err error) {
		fmt.Fprintf(os.Stderr, "inbox: %s: %v\n", path, err)
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return watcher.Start(ctx) })
	g.Go(func() error {
		fmt.Printf("API listening on %s\n", addr)
		return server.Start()
	})

	if a.cfg.Inbox.Repo != "" {
		lister := issuesrc.NewFetcher(a.cfg.Inbox.Repo, a.cfg.Inbox.BaseRef)
		poller, err := inbox.NewPoller(lister, orch, a.cfg.Inbox.PollCron, func(err error) {
			fmt.Fprintf(os.Stderr, "poll: %v\n", err)
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return poller.Start(ctx) })
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil // clean shutdown
	}
	return err
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	repo := submitRepo
	if repo == "" {
		repo = a.cfg.Inbox.Repo
	}
	if repo == "" {
		return fmt.Errorf("no repository: pass --repo or set inbox.repo in the config")
	}

	fetcher := issuesrc.NewFetcher(repo, submitBaseRef)
	issue, err := fetcher.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	orch := a.orchestrator(nil)
	runID, err := orch.Submit(issue)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s created for issue %s\n", runID, issue.ID)
	fmt.Printf("Process it with: issue-orch resume %s\n", runID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns("")
	if err != nil {
		return err
	}

	counts := make(map[domain.RunStatus]int)
	for _, run := range runs {
		counts[run.Status]++
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "total\t%d\n", len(runs))
	for _, s := range []domain.RunStatus{
		domain.RunCreated, domain.RunPlanning, domain.RunInProgress,
		domain.RunAwaitingReview, domain.RunNeedsClarification,
		domain.RunCompleted, domain.RunFailed, domain.RunCancelled,
	} {
		if counts[s] > 0 {
			fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
		}
	}
	return w.Flush()
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(domain.RunStatus(runsStatus))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tISSUE\tSTATUS\tTASK\tREVIEW")
	for _, run := range runs {
		task := "-"
		if run.CurrentTask >= 0 {
			task = fmt.Sprintf("%d", run.CurrentTask)
		}
		review := run.ReviewURL
		if review == "" {
			review = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", run.ID, run.IssueID, run.Status, task, review)
	}
	return w.Flush()
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := a.orchestrator(func(ev orchestrator.Event) {
		if ev.Message != "" {
			fmt.Printf("[%s] %s: %s\n", ev.Type, ev.State, ev.Message)
		} else {
			fmt.Printf("[%s] %s\n", ev.Type, ev.State)
		}
	})
	if err := orch.ProcessRun(ctx, args[0]); err != nil {
		return err
	}

	run, err := a.store.GetRun(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %s\n", run.ID, run.Status)
	if run.ReviewURL != "" {
		fmt.Printf("Review: %s\n", run.ReviewURL)
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.orchestrator(nil)
	if err := orch.Cancel(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancellation requested for run %s\n", args[0])
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logs, err := a.store.ListLogs(args[0], logsLimit)
	if err != nil {
		return err
	}
	for _, entry := range logs {
		fmt.Printf("%s [%s] %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	released, err := a.workspaces.Sweep(a.store)
	if err != nil {
		return err
	}
	if len(released) == 0 {
		fmt.Println("Nothing to sweep")
		return nil
	}
	for _, id := range released {
		fmt.Printf("Released workspace for run %s\n", id)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.orchestrator(nil)
	p := tea.NewProgram(tui.NewModel(a.store, orch), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
