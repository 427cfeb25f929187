package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	User       string
	Token      string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for notifyctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "notifyctl",
		Short: "notifyctl - follow alumni network notifications",
		Long:  "Follow and acknowledge notifications through whichever notification source answers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Token == "" {
				opts.Token = os.Getenv("NOTIFYCTL_TOKEN")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "notifyctl.yaml", "path to the endpoint config file")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "recipient user ID")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token (defaults to $NOTIFYCTL_TOKEN)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewReadAllCommand(opts))
	cmd.AddCommand(NewEndpointsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
