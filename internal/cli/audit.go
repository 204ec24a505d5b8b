package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/spf13/cobra"
)

// ErrLedgerDrift is returned when at least one audited item is inconsistent.
var ErrLedgerDrift = errors.New("ledger drift detected")

// AuditSummary is the machine-readable audit result.
type AuditSummary struct {
	Items        int                     `json:"items" yaml:"items"`
	Inconsistent int                     `json:"inconsistent" yaml:"inconsistent"`
	Reports      []*service.LedgerReport `json:"reports" yaml:"reports"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [item-id...]",
		Short: "Replay stock ledgers against cached balances",
		Long: `Replay every movement of each item from zero and compare the result
with the item's cached balance and each movement's recorded resulting balance.

Without arguments all items that are not deleted are audited. The command
exits non-zero when any ledger is inconsistent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runAudit(opts *RootOptions, ids []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := commandLogger(cmd, opts)

	store, err := opts.OpenStore(ctx, log)
	if err != nil {
		return err
	}
	defer store.Close()

	auditor := service.NewLedgerAuditor(store.Stores, log)

	var reports []*service.LedgerReport
	if len(ids) == 0 {
		if reports, err = auditor.VerifyAll(ctx); err != nil {
			return err
		}
	} else {
		for _, id := range ids {
			r, err := auditor.Verify(ctx, id)
			if err != nil {
				return fmt.Errorf("audit %s: %w", id, err)
			}
			reports = append(reports, r)
		}
	}

	summary := AuditSummary{Items: len(reports), Reports: reports}
	for _, r := range reports {
		if !r.Consistent {
			summary.Inconsistent++
		}
	}

	p := printer{format: opts.Output, w: cmd.OutOrStdout()}
	err = p.print(summary, func(w io.Writer) error {
		for _, r := range reports {
			status := "ok"
			if !r.Consistent {
				status = "DRIFT"
			}
			if err := fprintln(w, "%-5s %s %q cached=%d replayed=%d movements=%d",
				status, r.ItemID, r.ItemName, r.CachedBalance, r.ReplayedBalance, r.Movements); err != nil {
				return err
			}
			for _, m := range r.Mismatches {
				if err := fprintln(w, "      movement %s (v%d): recorded %d, expected %d",
					m.MovementID, m.ItemVersion, m.Recorded, m.Expected); err != nil {
					return err
				}
			}
		}
		return fprintln(w, "%d item(s) audited, %d inconsistent", summary.Items, summary.Inconsistent)
	})
	if err != nil {
		return err
	}

	if summary.Inconsistent > 0 {
		return fmt.Errorf("%w in %d item(s)", ErrLedgerDrift, summary.Inconsistent)
	}
	return nil
}
