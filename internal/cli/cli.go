package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casapod/storegen/internal/app"
	"github.com/casapod/storegen/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// options holds the persistent flag values shared by every subcommand.
type options struct {
	storeDir  string
	logLevel  string
	logFormat string
	workers   int
}

// buildApp loads the store configuration and constructs the application.
func (o *options) buildApp(outW io.Writer) (*app.App, error) {
	cfg, err := config.Load(filepath.Join(o.storeDir, config.File))
	if err != nil {
		return nil, err
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	return app.New(outW, cfg, app.Options{
		LogLevel:  o.logLevel,
		LogFormat: o.logFormat,
	})
}

// NewRootCommand assembles the command tree. outW receives logs; command
// errors propagate to the caller for exit-code handling.
func NewRootCommand(outW io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "storegen",
		Short:         "Render a self-hosted app store from its templates",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVarP(&opts.storeDir, "store", "s", ".", "Path to the store root directory.")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Number of concurrent render workers. 0 uses the configured value.")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		opts.logFormat = strings.ToLower(opts.logFormat)
		if opts.logFormat != "text" && opts.logFormat != "json" {
			return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
		}
		opts.logLevel = strings.ToLower(opts.logLevel)
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
		}
		if opts.workers < 0 {
			return &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
		}
		return nil
	}

	root.AddCommand(
		newGenerateCommand(outW, opts),
		newInstallCommand(outW, opts),
		newUninstallCommand(outW, opts),
	)
	return root
}

func newGenerateCommand(outW io.Writer, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Render every app's manifest, definition, and config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.buildApp(outW)
			if err != nil {
				return err
			}
			return a.Generate(cmd.Context())
		},
	}
}

func newInstallCommand(outW io.Writer, opts *options) *cobra.Command {
	var settings string

	cmd := &cobra.Command{
		Use:   "install <app-id>",
		Short: "Mark an app as installed and regenerate the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return &ExitError{Code: 2, Message: "app id is required"}
			}
			a, err := opts.buildApp(outW)
			if err != nil {
				return err
			}
			if err := a.Install(cmd.Context(), id, settings); err != nil {
				return fmt.Errorf("installing %q: %w", id, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&settings, "settings", "", "App settings as a JSON object.")
	return cmd
}

func newUninstallCommand(outW io.Writer, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <app-id>",
		Short: "Remove an app from the installed state and regenerate the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return &ExitError{Code: 2, Message: "app id is required"}
			}
			a, err := opts.buildApp(outW)
			if err != nil {
				return err
			}
			if err := a.Uninstall(cmd.Context(), id); err != nil {
				return fmt.Errorf("uninstalling %q: %w", id, err)
			}
			return nil
		},
	}
}
