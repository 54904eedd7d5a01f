package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/db"
	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/plan"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/store"
)

func newAlertsCmd(load func() (*config.Config, error)) *cobra.Command {
	var user int64
	var all bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the service plans of a user and what is left until they are due",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gormDB, err := db.Init(&cfg.Database)
			if err != nil {
				return err
			}
			s := store.NewGormStore(gormDB)
			return runAlerts(cmd.Context(), cmd.OutOrStdout(), s, user, all, time.Now(), cfg.Alerts.WarnRatio)
		},
	}

	cmd.Flags().Int64VarP(&user, "user", "u", 0, "user id")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include plans that are not due")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runAlerts(ctx context.Context, out io.Writer, s store.Store, user int64, all bool, now time.Time, warnRatio float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sum, err := s.Summary(ctx, user)
	if err != nil {
		return err
	}
	snap := snapshot.New(sum)
	ev := plan.New(snap, plan.WithNow(now), plan.WithWarnRatio(warnRatio))
	plans := snap.Plans()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tPLAN\tPART\tLAST SERVICE\tREMAINING")
	for _, r := range ev.Evaluate(plans) {
		if !all && r.Status == plan.StatusOK {
			continue
		}
		last := "-"
		if r.Service != nil {
			last = r.Service.Time.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Status, r.Plan.Name, r.Part.Name, last, remaining(r.Due))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	c := ev.AlertsForPlans(plans)
	fmt.Fprintf(out, "\n%d alert, %d warn\n", c.Alert, c.Warn)
	return nil
}

func remaining(due model.Limits) string {
	var parts []string
	for _, k := range model.LimitKeys {
		if v := due.Get(k); v != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", k, *v))
		}
	}
	return strings.Join(parts, " ")
}
