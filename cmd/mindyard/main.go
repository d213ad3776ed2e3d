package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/a-marczewski/mindyard/internal/app"
	"github.com/a-marczewski/mindyard/internal/engine"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "mindyard",
	Short: "mindyard - intent routing and structural understanding engine",
	Long: `mindyard routes conversational utterances to handler nodes and maintains
a per-thread hypothesis of the structural issue the user is circling.`,
}

var (
	flagThread string
	flagMode   string
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(workerCmd)

	routeCmd.Flags().StringVar(&flagThread, "thread", "default", "thread id")
	routeCmd.Flags().StringVar(&flagMode, "mode", "", "forced intent (mode switcher)")
	turnCmd.Flags().StringVar(&flagThread, "thread", "default", "thread id")
	turnCmd.Flags().StringVar(&flagMode, "mode", "", "forced intent (mode switcher)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mindyard v0.1.0")
	},
}

var routeCmd = &cobra.Command{
	Use:   "route [utterance]",
	Short: "Classify an utterance without generating a reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := a.ContextWithLogger(cmd.Context())
		resp := a.Engine.Route(ctx, engineRequest(args))

		fmt.Printf("intent:     %s\n", resp.Intent)
		fmt.Printf("confidence: %.2f\n", resp.Confidence)
		fmt.Printf("method:     %s\n", resp.Method)
		fmt.Printf("label:      %s\n", resp.Label)
		fmt.Printf("situation:  %s", resp.Situation.Type)
		if resp.Situation.ResolvedTopic != "" {
			fmt.Printf(" (topic: %s)", resp.Situation.ResolvedTopic)
		}
		if resp.Situation.DoMode {
			fmt.Print(" [do]")
		}
		fmt.Println()
		return nil
	},
}

var turnCmd = &cobra.Command{
	Use:   "turn [utterance]",
	Short: "Process one conversation turn end to end",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := a.ContextWithLogger(cmd.Context())
		resp := a.Engine.Turn(ctx, engineRequest(args))

		fmt.Printf("[%s]\n%s\n", resp.Label, resp.Reply)
		if resp.Task != nil {
			fmt.Printf("(background task %s scheduled: %s)\n", resp.Task.ID, resp.Task.Type)
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the background task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.Logger.Info("worker started")
		if err := a.Worker.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("worker stopped", zap.Error(err))
			return err
		}
		a.Logger.Info("worker stopped")
		return nil
	},
}

func engineRequest(args []string) engine.Request {
	return engine.Request{
		ThreadID:     flagThread,
		Content:      strings.Join(args, " "),
		ModeOverride: flagMode,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
