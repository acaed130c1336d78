// gwtermd is the process entrypoint for the terminal pane runtime: a Pane
// Manager plus an optional IPC Broker, driven by a cobra CLI and a TUI
// render consumer.
//
// Follows go-hub's cmd/botster-hub/main.go for the cobra root-plus-subcommand
// shape, slog-before-everything-else setup, and Version-via-ldflags
// convention.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/akiojin/gwtermd/internal/config"
	"github.com/akiojin/gwtermd/internal/gitops"
	"github.com/akiojin/gwtermd/internal/ipc"
	"github.com/akiojin/gwtermd/internal/launcher"
	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/panemanager"
	"github.com/akiojin/gwtermd/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	rootCmd := &cobra.Command{
		Use:     "gwtermd",
		Short:   "Multi-pane PTY terminal runtime for git-worktree agents",
		Version: Version,
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the pane runtime",
		RunE:  runStart,
	}
	startCmd.Flags().Bool("headless", false, "Run without the TUI")
	startCmd.Flags().String("command", "", "Launch an initial pane running this command")
	startCmd.Flags().StringSlice("args", nil, "Arguments for --command")
	startCmd.Flags().String("branch", "main", "Branch name attribute for the initial pane")
	startCmd.Flags().String("agent", "", "Agent name attribute for the initial pane")
	rootCmd.AddCommand(startCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the configured data directory and socket path",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	headless, _ := cmd.Flags().GetBool("headless")
	command, _ := cmd.Flags().GetString("command")
	cmdArgs, _ := cmd.Flags().GetStringSlice("args")
	branch, _ := cmd.Flags().GetString("branch")
	agentName, _ := cmd.Flags().GetString("agent")

	slog.Info("starting gwtermd", "version", Version, "headless", headless)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("configuration loaded", "data_dir", cfg.DataDir, "socket", cfg.SocketPath())

	manager := panemanager.New()
	git := gitops.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	createPane := func(command string, args []string, branchName, agent string) (*pane.Pane, error) {
		resolvedCommand, resolvedArgs := resolveLaunchCommand(command, args)
		p, err := pane.New(pane.Config{
			PaneID:     uuid.NewString(),
			Command:    resolvedCommand,
			Args:       resolvedArgs,
			Rows:       24,
			Cols:       80,
			DataDir:    cfg.TerminalsDir(),
			BranchName: branchName,
			AgentName:  agent,
		})
		if err != nil {
			return nil, err
		}
		spawnPaneReader(ctx, p)
		return p, nil
	}

	if command != "" {
		p, err := createPane(command, cmdArgs, branch, agentName)
		if err != nil {
			return fmt.Errorf("launch initial pane: %w", err)
		}
		manager.AddPane(p)
	}

	broker := ipc.New(manager, git, createPane, slog.Default())
	go func() {
		if err := broker.Serve(ctx, cfg.SocketPath()); err != nil {
			slog.Error("ipc broker stopped", "error", err)
		}
	}()

	go runStatusWatcher(ctx, manager, time.Duration(cfg.StatusPollIntervalMS)*time.Millisecond)

	if headless {
		<-ctx.Done()
		return nil
	}

	if err := tui.Run(manager); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	stop()
	return nil
}

// resolveLaunchCommand rewrites command/args to a bunx/npx invocation when
// command cannot be found on PATH, so npm-distributed agent CLIs still
// launch from environments (GUIs, service managers) whose PATH excludes
// the interactive shell's bunx/npx.
func resolveLaunchCommand(command string, args []string) (string, []string) {
	if command == "" || launcher.ResolveCommandPath(command) != "" {
		return command, args
	}

	bunxPath := launcher.ResolveCommandPath("bunx")
	npxPath := launcher.ResolveCommandPath("npx")
	runner, ok := launcher.ChooseFallbackRunner(bunxPath, npxPath != "")
	if !ok {
		return command, args
	}

	launchCmd, baseArgs := launcher.BuildFallbackLaunch(runner, command, bunxPath, npxPath)
	return launchCmd, append(baseArgs, args...)
}

// spawnPaneReader starts the dedicated output reader goroutine: it blocks
// on the PTY reader and feeds each chunk to the pane for the life of the
// pane, stopping when the read returns an error (for example on child
// exit) or, once a read has returned, when ctx has been cancelled. A read
// already blocked is not interrupted by cancellation.
func spawnPaneReader(ctx context.Context, p *pane.Pane) {
	go func() {
		reader := p.TakeReader()
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				p.ProcessBytes(buf[:n])
			}
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
}

// runStatusWatcher runs the shared status-watcher tick: it calls PollStatus
// at a small interval until ctx is cancelled.
func runStatusWatcher(ctx context.Context, manager *panemanager.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, paneID := range manager.PollStatus() {
				slog.Info("pane exited", "pane_id", paneID)
			}
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Printf("Socket: %s\n", cfg.SocketPath())
	fmt.Printf("Scrollback max lines: %d\n", cfg.ScrollbackMaxLines)
	return nil
}
