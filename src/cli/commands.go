package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notifications as they arrive",
		Long: `Bind to the first notification source that answers and print the
notification list every time it changes, until interrupted.

Examples:
  notifyctl watch --user 42 --config ./notifyctl.yaml
  notifyctl watch --user 42 --once --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "print the current list and exit")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out := printer{format: opts.Format, w: cmd.OutOrStdout()}
	list, err := s.coordinator.Start(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start session", err)
	}
	if err := out.notifications(list); err != nil {
		return err
	}
	if opts.Once {
		return nil
	}

	updates := s.coordinator.Updates()
	// the list just printed is already queued
	select {
	case <-updates:
	default:
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case list := <-updates:
			if err := out.notifications(list); err != nil {
				return err
			}
		}
	}
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "read <notification-id>",
		Short:         "Mark one notification as read",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.coordinator.MarkRead(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "failed to mark notification read", err)
				}
				return printer{format: rootOpts.Format, w: cmd.OutOrStdout()}.message("marked %s read", args[0])
			})
		},
	}
}

// NewReadAllCommand creates the read-all command.
func NewReadAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "read-all",
		Short:         "Mark every notification as read",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.coordinator.MarkAllRead(ctx); err != nil {
					return WrapExitError(ExitFailure, "failed to mark notifications read", err)
				}
				return printer{format: rootOpts.Format, w: cmd.OutOrStdout()}.message("marked all notifications read")
			})
		},
	}
}

// NewEndpointsCommand creates the endpoints command.
func NewEndpointsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Probe the configured endpoints and report their health",
		Long: `Run one probe pass over the configured endpoints and print the
binding that resulted and the health of every endpoint.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if _, err := s.coordinator.Start(ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to start session", err)
				}
				report := s.coordinator.Endpoints().Status()
				report["state"] = string(s.coordinator.State())
				report["bound"] = s.coordinator.BoundEndpoint()
				s.coordinator.Stop()

				out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
				if rootOpts.Format == "json" {
					return out.json(report)
				}
				return printEndpointReport(cmd, report)
			})
		},
	}
}

func withSession(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printEndpointReport(cmd *cobra.Command, report map[string]interface{}) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "state: %s\n", report["state"])
	if bound := report["bound"]; bound != "" {
		fmt.Fprintf(w, "bound: %s\n", bound)
	}
	fmt.Fprintf(w, "healthy: %d/%d\n", report["healthy"], report["total"])
	for _, ep := range report["endpoints"].([]map[string]interface{}) {
		status := "down"
		if ep["is_healthy"].(bool) {
			status = "up"
		}
		line := fmt.Sprintf("  %-12s %s %s", ep["name"], ep["url"], status)
		if e, ok := ep["last_error"]; ok {
			line += fmt.Sprintf(" (%s)", e)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
