package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/archivemint-backend/internal/balance"
	pkgAuth "github.com/angelmondragon/archivemint-backend/pkg/auth"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

type statusReader interface {
	Status(ctx context.Context, avgMintsPerDay float64) balance.Snapshot
	MonitorAndAlert(ctx context.Context, avgMintsPerDay float64) balance.Snapshot
}

type app struct {
	out     io.Writer
	monitor func(ctx context.Context) (statusReader, error)
	jwt     func() (config.JWTConfig, error)
	now     func() time.Time
	openDB  func(ctx context.Context) (*sql.DB, func() error, error)
	schema  schemaRunner
}

func newRootCommand(a *app) *cobra.Command {
	if a.now == nil {
		a.now = time.Now
	}
	if a.openDB == nil {
		a.openDB = openDatabase
	}
	if a.schema.run == nil || a.schema.to == nil {
		a.schema = gooseRunner
	}
	cmd := &cobra.Command{
		Use:          "archivectl",
		Short:        "ArchiveMint operator CLI",
		Long:         `archivectl reports on the platform wallet that pays for permanent storage, mints operator tokens for the admin API and manages the database schema.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newBalanceCmd(a),
		newMonitorCmd(a),
		newTokenCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the platform wallet balance and remaining mint capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := a.monitor(cmd.Context())
			if err != nil {
				return err
			}
			snap := monitor.Status(cmd.Context(), 0)
			if snap.Status == enums.PlatformHealthError {
				return fmt.Errorf("balance check failed: %s", snap.Error)
			}
			return renderBalance(a.out, snap)
		},
	}
}

func newMonitorCmd(a *app) *cobra.Command {
	var avg float64
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Check the wallet, alert when low and print the status document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if avg < 0 {
				return errors.New("--avg-mints-per-day must not be negative")
			}
			monitor, err := a.monitor(cmd.Context())
			if err != nil {
				return err
			}
			snap := monitor.MonitorAndAlert(cmd.Context(), avg)
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
			if snap.Status == enums.PlatformHealthError {
				return fmt.Errorf("balance check failed: %s", snap.Error)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&avg, "avg-mints-per-day", 0, "Expected mint rate; 0 uses the configured default")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator access token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user-id: %w", err)
			}
			cfg, err := a.jwt()
			if err != nil {
				return err
			}
			token, err := pkgAuth.MintAccessToken(cfg, a.now(), pkgAuth.AccessTokenPayload{
				UserID: id,
				Role:   enums.ActorRoleOperator,
				JTI:    uuid.NewString(),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Operator user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func renderBalance(w io.Writer, snap balance.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Wallet:\t%s\n", snap.Address)
	fmt.Fprintf(tw, "Balance:\t%s AR\n", snap.Balance.Native.StringFixed(6))
	fmt.Fprintf(tw, "USD value:\t$%s\n", snap.Balance.USD.StringFixed(2))
	fmt.Fprintf(tw, "Mints remaining:\t%d\n", snap.Estimates.MintsRemaining)
	fmt.Fprintf(tw, "Days remaining:\t%.2f at %.0f/day\n", snap.Estimates.DaysRemaining, snap.AvgMintsPerDay)
	fmt.Fprintf(tw, "Status:\t%s\n", snap.Status)
	return tw.Flush()
}
