package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ken0yuan/auto-ai-web/internal/agent"
	"github.com/ken0yuan/auto-ai-web/internal/server"
	"github.com/ken0yuan/auto-ai-web/internal/taskstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept tasks over HTTP and run them in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := taskstore.Open(cfg.Server.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runner := server.RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
			return runTask(ctx, url, task)
		})
		return server.New(log, store, runner).ListenAndServe(ctx, cfg.Server.Addr)
	},
}
