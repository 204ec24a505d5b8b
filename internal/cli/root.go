// Package cli implements stockctl, the operator tool for the inventory core.
package cli

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-stock/internal/inventory/storage"
	"github.com/medflow/pharmacy-stock/pkg/config"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/spf13/cobra"
)

// ServiceName is the config profile stockctl reads for storage settings.
const ServiceName = "inventory-service"

// StoreOpener opens the store the audit command reads from.
type StoreOpener func(ctx context.Context, log *logger.Logger) (*storage.Handle, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Output  string // "text" | "json" | "yaml"

	// OpenStore defaults to the configured database.
	OpenStore StoreOpener
}

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{OutputText, OutputJSON, OutputYAML}

// NewRootCommand creates the stockctl root command.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{OpenStore: openConfiguredStore})
}

// NewRootCommandWith builds the command tree around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stockctl",
		Short: "Inventory stock tooling",
		Long:  "Convert packaging quantities, render balances and audit stock ledgers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidOutput(opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", OutputText, "output format (text|json|yaml)")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewFormatCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

func isValidOutput(output string) bool {
	for _, o := range ValidOutputs {
		if o == output {
			return true
		}
	}
	return false
}

func openConfiguredStore(ctx context.Context, log *logger.Logger) (*storage.Handle, error) {
	cfg, err := config.LoadWithValidation(ServiceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// the audit is read-only; schema changes belong to the service
	cfg.Database.AutoMigrate = false
	return storage.Open(ctx, &cfg.Database, log)
}

// commandLogger writes to stderr so structured output on stdout stays clean.
func commandLogger(cmd *cobra.Command, opts *RootOptions) *logger.Logger {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logger.NewWithWriter("stockctl", cmd.ErrOrStderr()).WithLevel(level)
}
