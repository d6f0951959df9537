package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldi/pbltrack/internal/mcp"
	"github.com/ldi/pbltrack/internal/server"
	"github.com/spf13/cobra"
)

func newWebCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ws, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if port == 0 {
				port = ws.cfg.Web.Port
			}
			srv := server.NewServer(ws.db, ws.log)

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					ws.log.Printf("web: shutdown: %v", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost:%d\n", port)
			if err := srv.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config.yaml)")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			ws.log.Printf("mcp: serving %s over stdio", mcp.Version)
			return mcp.Serve(mcp.NewServer(ws.db))
		},
	}
}
