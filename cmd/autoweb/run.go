package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ken0yuan/auto-ai-web/internal/action"
	"github.com/ken0yuan/auto-ai-web/internal/agent"
	"github.com/ken0yuan/auto-ai-web/internal/browser"
	"github.com/ken0yuan/auto-ai-web/internal/dom"
)

var runURL string

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run one task and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runURL == "" {
			return fmt.Errorf("--url is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		outcome, err := runTask(ctx, runURL, args[0])
		if outcome != nil {
			printOutcome(outcome)
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "starting URL")
}

// runTask wires a fresh browser session to the agent loop for one task.
func runTask(ctx context.Context, url, task string) (*agent.Outcome, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, err
	}

	session, err := browser.NewPlaywrightSession(log, browser.LaunchOptions{
		Headless: cfg.Browser.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.Navigate(ctx, url, cfg.Browser.ActionTimeout.Std()); err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	builder := dom.NewBuilder(log, dom.BuildOptions{
		StrictViewport:    cfg.Browser.StrictViewport,
		ViewportExpansion: cfg.Browser.ViewportExpansion,
		Highlight:         cfg.Browser.Highlight,
	})
	controller := action.NewController(log, page, builder, action.Options{
		Timeout: cfg.Browser.ActionTimeout.Std(),
	})
	a := agent.New(log, eng, controller, page, agent.Options{
		MaxSteps:     cfg.Agent.MaxSteps,
		HistoryLimit: cfg.Agent.HistoryLimit,
		StepTimeout:  cfg.Agent.StepTimeout.Std(),
		Screenshot:   cfg.Agent.Screenshot,
	})

	log.Info("starting task", zap.String("url", url), zap.String("task", task))
	return a.Run(ctx, task)
}

func printOutcome(outcome *agent.Outcome) {
	if outcome.Success {
		fmt.Printf("Done in %d steps: %s\n", outcome.Steps, outcome.Message)
	} else {
		fmt.Printf("Gave up after %d steps: %s\n", outcome.Steps, outcome.Message)
	}
	for _, h := range outcome.History {
		fmt.Printf("  %2d. %s\n", h.Step, h.String())
	}
}
