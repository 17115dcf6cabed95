package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/panyam/wardwatch/devserver"
)

func newServeDevCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run an in-memory backend with a demo nurse and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := a.cfg.Dev
			if addr != "" {
				dev.Addr = addr
			}

			s := devserver.New(devserver.Config{
				PathPrefix:          dev.PathPrefix,
				JWTSecretKey:        dev.JWTSecret,
				AccessTokenExpiry:   dev.AccessTokenTTL,
				TokenShape:          devserver.TokenShape(dev.TokenShape),
				PatientEnvelope:     dev.PatientEnvelope,
				RotateRefreshTokens: dev.RotateRefreshTokens,
				Logger:              a.logger,
			})
			if err := devserver.Seed(s); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              dev.Addr,
				Handler:           s,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Dev backend on %s%s (login %s / %s)\n",
				dev.Addr, dev.PathPrefix, devserver.DemoEmail, devserver.DemoPassword)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
