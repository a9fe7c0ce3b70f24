// Command workflow-runner is a runnable demo wiring the engine, the
// default history store, the HTTP/WS observer adapter and the illustrative
// update-flow items together, plus an interactive console for driving the
// engine by hand (pause/resume/cancel/stop/retry/skip/action).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/term"

	"timeline/internal/config"
	"timeline/internal/historystore"
	"timeline/internal/logging"
	"timeline/internal/observability"
	"timeline/internal/observer"
	"timeline/internal/updateflow"
	"timeline/internal/workflow"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "workflow-runner",
		Short: "Drives the timeline engine through a demo update run",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newVersionCommand())

	viper.SetConfigName("workflow-runner")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.timeline")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("TIMELINE")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		// no workflow-runner.yaml found; internal/config.Load still applies
		// its own default/env/override layering independent of viper.
	}

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the workflow-runner version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("workflow-runner dev")
			return nil
		},
	}
}

func newRunCommand(configPath *string) *cobra.Command {
	var siteID, workflowType string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the illustrative update workflow to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(*configPath, siteID, workflowType)
		},
	}
	cmd.Flags().StringVar(&siteID, "site-id", "", "overrides the configured site id")
	cmd.Flags().StringVar(&workflowType, "workflow-type", "", "overrides the configured workflow type")
	return cmd
}

func runDemo(configPath, siteIDFlag, workflowTypeFlag string) error {
	var overrides config.Overrides
	if siteIDFlag != "" {
		overrides.DefaultSiteID = &siteIDFlag
	}
	if workflowTypeFlag != "" {
		overrides.DefaultWorkflowType = &workflowTypeFlag
	}

	opts := []config.Option{config.WithOverrides(overrides)}
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.FromObservabilityWithComponent(
		observability.NewLogger(observability.LogConfig{Level: "info", Format: "text"}),
		"workflow-runner",
	)

	for _, field := range []string{"site_id", "workflow_type", "observer_addr", "history_cache_size"} {
		log.Debug("config %s = %s", field, meta.Source(field))
	}

	store, err := historystore.New(cfg.HistoryCacheSize, cfg.HistorySnapshotPath, log)
	if err != nil {
		return fmt.Errorf("build history store: %w", err)
	}

	meterProvider, err := observability.BuildMeterProvider(observability.MetricsConfig{Enabled: true}, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("build meter provider: %w", err)
	}
	otel.SetMeterProvider(meterProvider)
	runsCounter, err := meterProvider.Meter("timeline/workflow-runner").Int64Counter(
		"workflow_runner_runs_total",
		otelmetric.WithDescription("Number of demo runs started by workflow-runner."),
	)
	if err != nil {
		return fmt.Errorf("build runs counter: %w", err)
	}
	runsCounter.Add(context.Background(), 1)

	engine := workflow.New(
		workflow.WithLogger(log),
		workflow.WithHistoryPort(store),
		workflow.WithSiteID(cfg.DefaultSiteID),
		workflow.WithWorkflowType(workflow.WorkflowType(cfg.DefaultWorkflowType)),
	)

	if err := engine.AddItems(demoTimeline()); err != nil {
		return fmt.Errorf("build timeline: %w", err)
	}

	obsServer := observer.NewServer(engine, log)
	go func() {
		if err := obsServer.Run(cfg.ObserverAddr); err != nil {
			log.Warn("observer server exited: %v", err)
		}
	}()
	fmt.Println(cyan(fmt.Sprintf("observer listening on %s (GET /snapshot, GET /ws)", cfg.ObserverAddr)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println(yellow("\nsignal received, cancelling run"))
		engine.Cancel()
	}()

	done := make(chan struct{})
	token := engine.On(workflow.EventCompleted, func(workflow.Event) {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer engine.Off(workflow.EventCompleted, token)

	engine.Start(ctx)

	if isTTY() {
		runConsole(engine, cfg.StatusPollInterval, done)
	} else {
		<-done
	}

	state := engine.GetState()
	fmt.Println(green(fmt.Sprintf("run finished: complete=%v error=%q", state.IsComplete, state.Error)))
	return nil
}

// demoTimeline builds the illustrative update run cmd/workflow-runner
// demonstrates: a version check, a manager self-update check, a composer
// dry-run (which injects a real update only if one is pending), a database
// migration, and a final version refresh.
func demoTimeline() []workflow.Item {
	return []workflow.Item{
		updateflow.NewCheckItem("check", "1.4.0", "1.5.2"),
		updateflow.NewManagerSelfUpdateCheckItem("mgr-check", "0.9.0", "0.9.0"),
		updateflow.NewComposerDryRunItem("composer-dry-run", []string{"acme/widget", "acme/gadget"}),
		updateflow.NewDatabaseMigrationItem("migrate", []string{"2026_07_add_runs_table"}),
		updateflow.NewVersionRefreshItem("version-refresh"),
	}
}

// runConsole drives a chzyer/readline REPL so an operator can pause,
// resume, cancel, retry, skip or answer an interactive item while the run
// is in flight. It returns once the run completes or the operator quits.
func runConsole(e *workflow.Engine, pollInterval time.Duration, done <-chan struct{}) {
	rl, err := readline.New(cyan("timeline> "))
	if err != nil {
		<-done
		return
	}
	defer rl.Close()

	fmt.Println(gray("commands: status | pause | resume | cancel | stop | retry <i> | skip <i> | action <item> <action> | quit"))
	fmt.Println(gray("  stop is a fatal halt (always records history status \"error\"); cancel is the graceful, cooperative option"))

	cmdCh := make(chan string)
	go func() {
		for {
			line, err := rl.Readline()
			if err != nil {
				close(cmdCh)
				return
			}
			cmdCh <- strings.TrimSpace(line)
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			printStatus(e)
		case line, ok := <-cmdCh:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if handleCommand(e, line) {
				return
			}
		}
	}
}

func handleCommand(e *workflow.Engine, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return true
	case "status":
		printStatus(e)
	case "pause":
		e.Pause()
	case "resume":
		e.Resume()
	case "cancel":
		e.Cancel()
	case "stop":
		fmt.Println(yellow("stop is a fatal halt and always records history status \"error\" — prefer cancel for a graceful stop"))
		e.Stop()
	case "retry":
		if len(fields) < 2 {
			fmt.Println(red("usage: retry <index>"))
			return false
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Println(red("invalid index: " + fields[1]))
			return false
		}
		e.RetryItem(i)
	case "skip":
		if len(fields) < 2 {
			fmt.Println(red("usage: skip <index>"))
			return false
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Println(red("invalid index: " + fields[1]))
			return false
		}
		e.SkipItem(i)
	case "action":
		if len(fields) < 3 {
			fmt.Println(red("usage: action <item-id> <action-id>"))
			return false
		}
		e.HandleUserAction(fields[1], fields[2])
	default:
		fmt.Println(red("unknown command: " + fields[0]))
	}
	return false
}

func printStatus(e *workflow.Engine) {
	state := e.GetState()
	fmt.Printf("%s index=%d/%d running=%v paused=%v complete=%v progress=%.0f%%\n",
		yellow("status"), state.CurrentIndex, state.TimelineLen, state.IsRunning, state.IsPaused, state.IsComplete, e.GetProgress())
}
