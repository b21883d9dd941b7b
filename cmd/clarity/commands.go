package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clarity "github.com/btt-go/btt-clarity"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Force a resynchronization of the local tracking script cache",
		Long: `Download the tracking script, compare it with the local copy and replace
the local copy when it changed. Intended to be run periodically (e.g. daily).
Prints the URL pages should reference afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.settings.TrackingConfig()
			if !cfg.LocalCache {
				a.logger.Info("local cache disabled, nothing to synchronize")
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.scriptCache().ResolveScriptURL(cmd.Context(), cfg, true))
			return nil
		},
	}
}

func newURLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the tracking script URL, filling the cache if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.settings.TrackingConfig()
			fmt.Fprintln(cmd.OutOrStdout(), a.scriptCache().ResolveScriptURL(cmd.Context(), cfg, false))
			return nil
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete the local tracking script cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scriptCache().Purge(cmd.Context())
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		path    string
		roles   []string
		aliases map[string]string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether the tracking snippet would be emitted for a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			cfg := a.settings.TrackingConfig()

			e := a.evaluator()
			if len(aliases) > 0 {
				e = clarity.NewEvaluator(clarity.MapAlias(aliases), clarity.NewGlobMatcher(a.settings.Site.FrontPath))
			}

			v := e.ForRequest(cfg, clarity.Request{
				Path:    path,
				Account: clarity.Account{Roles: roles},
			})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "page: %t\n", v.PageMatch())
			fmt.Fprintf(out, "role: %t\n", v.RoleMatch())
			fmt.Fprintf(out, "track: %t\n", v.ShouldTrack())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "/", "request path")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role of the current user (repeatable)")
	cmd.Flags().StringToStringVar(&aliases, "alias", nil, "path alias, e.g. /node/1=/about (repeatable)")
	return cmd
}

func newDashboardCmd(a *app) *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the embedded Clarity dashboard URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if site == "" {
				site = a.settings.Site.Name
			}
			fmt.Fprintln(cmd.OutOrStdout(), clarity.DashboardURL(site, a.settings.ProjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site name (defaults to site.name)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow cache-bust notifications published by other processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := clarity.NewFlushWatcher(a.rdb, a.logger)
			err := w.Watch(ctx, from, func(m clarity.FlushMessage) {
				a.logger.Info("static asset cache flushed",
					zap.String("token", m.Token),
					zap.String("reason", m.Reason),
					zap.Int64("timestamp", m.Timestamp))
				fmt.Fprintln(cmd.OutOrStdout(), m.Token)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "$", "stream ID to start from ($ for new messages only)")
	return cmd
}
