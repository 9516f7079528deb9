package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/logx"
	"github.com/guiyumin/unmark/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server that resolves share links for remote clients.

Examples:
  unmark serve              # Start server on port 5001
  unmark serve -p 9000      # Start server on port 9000

API Endpoints:
  GET    /health                  # Health check
  POST   /api/parse               # Resolve {"short_link": "...", "session": "..."}
  POST   /api/session             # Store a cookie {"cookie": "..."}, returns a token
  DELETE /api/session/:token      # Forget a stored cookie
  GET    /api/proxy?url=...       # Stream a platform image through this server`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 5001)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.LoadOrDefault()
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		return err
	}
	return RunServer(server.NewServer(cfg, servePort, pipeline, pipeline.Registry()))
}

// RunServer starts srv and stops it gracefully on SIGINT or SIGTERM
func RunServer(srv *server.Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			logx.FromContext(ctx).Error().Err(err).Msg("shutdown failed")
		}
	}()

	return srv.Start()
}
