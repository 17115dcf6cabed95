package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/panyam/wardwatch/client"
)

func (a *app) tempUnit(flag string) client.TempUnit {
	if flag != "" {
		return client.ParseTempUnit(flag)
	}
	return client.ParseTempUnit(a.cfg.Display.TempUnit)
}

func newDashboardCmd(a *app) *cobra.Command {
	var (
		unit        string
		watch       time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the greeting, facility and assigned patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				shutdown, err := a.serveMetrics(metricsAddr)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := requireLogin(ac); err != nil {
				return err
			}

			tu := a.tempUnit(unit)
			for {
				if err := a.showDashboard(ctx, cmd, ac, tu); err != nil {
					return err
				}
				if watch <= 0 {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(watch):
				}
			}
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "temperature unit, C or F")
	cmd.Flags().DurationVar(&watch, "watch", 0, "refresh the dashboard at this interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve client metrics on this address")
	return cmd
}

// showDashboard loads profile and patients concurrently and renders both
func (a *app) showDashboard(ctx context.Context, cmd *cobra.Command, ac *client.AuthClient, unit client.TempUnit) error {
	var (
		profile  client.Profile
		patients []client.Patient
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = ac.FetchProfile(gctx)
		return err
	})
	g.Go(func() (err error) {
		patients, err = ac.ListPatients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return a.handleAuthFailure(ctx, ac, err)
	}

	out := cmd.OutOrStdout()
	if err := renderGreeting(out, profile); err != nil {
		return err
	}
	return renderPatients(out, patients, unit, time.Now())
}

func newPatientsCmd(a *app) *cobra.Command {
	var (
		unit   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List assigned patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := requireLogin(ac); err != nil {
				return err
			}

			patients, err := ac.ListPatients(ctx)
			if err != nil {
				return a.handleAuthFailure(ctx, ac, err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(patients)
			}
			return renderPatients(cmd.OutOrStdout(), patients, a.tempUnit(unit), time.Now())
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "temperature unit, C or F")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print normalized records as JSON")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the nurse profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := requireLogin(ac); err != nil {
				return err
			}

			profile, err := ac.FetchProfile(ctx)
			if err != nil {
				return a.handleAuthFailure(ctx, ac, err)
			}
			return renderProfile(cmd.OutOrStdout(), profile)
		},
	}
	cmd.AddCommand(newProfileSetCmd(a))
	return cmd
}

func newProfileSetCmd(a *app) *cobra.Command {
	var name, facility, shift string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch client.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.FullName = &name
			}
			if cmd.Flags().Changed("facility") {
				patch.Facility = &facility
			}
			if cmd.Flags().Changed("shift") {
				patch.ShiftPreference = &shift
			}
			if patch.FullName == nil && patch.Facility == nil && patch.ShiftPreference == nil {
				return errors.New("nothing to update, pass --name, --facility or --shift")
			}

			ctx := cmd.Context()
			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := requireLogin(ac); err != nil {
				return err
			}

			profile, err := ac.UpdateProfile(ctx, patch)
			if err != nil {
				return a.handleAuthFailure(ctx, ac, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated")
			return renderProfile(cmd.OutOrStdout(), profile)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&facility, "facility", "", "facility")
	cmd.Flags().StringVar(&shift, "shift", "", "shift preference, Day or Night")
	return cmd
}

// serveMetrics exposes client metrics over HTTP until the returned func is called
func (a *app) serveMetrics(addr string) (func(), error) {
	reg := prometheus.NewRegistry()
	a.metrics = client.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
