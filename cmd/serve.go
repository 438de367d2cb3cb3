package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/they4kman/sweepd/service"
	"github.com/they4kman/sweepd/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			server := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      web.NewServer(svc, log),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			failed := make(chan error, 1)
			go func() {
				log.WithField("addr", server.Addr).WithField("store", cfg.Store.Driver).Info("server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					failed <- err
				}
				close(failed)
			}()

			select {
			case err := <-failed:
				return err
			case <-ctx.Done():
			}

			log.Info("received shutdown signal")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("server shutdown")
				return err
			}
			log.Info("server stopped gracefully")
			return nil
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	cobra.CheckErr(v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")))
	rootCmd.AddCommand(serveCmd)
}
