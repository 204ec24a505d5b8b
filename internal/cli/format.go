package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/medflow/pharmacy-stock/internal/inventory/display"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/spf13/cobra"
)

// FormattedBalance is the machine-readable form of a rendered balance.
type FormattedBalance struct {
	Mode      packaging.Mode   `json:"mode" yaml:"mode"`
	NextMode  packaging.Mode   `json:"next_mode" yaml:"next_mode"`
	Text      string           `json:"text" yaml:"text"`
	BaseUnits int64            `json:"base_units" yaml:"base_units"`
	Parts     []ConvertedLevel `json:"parts" yaml:"parts"`
}

func formatted(b display.Balance) FormattedBalance {
	out := FormattedBalance{Mode: b.Mode, NextMode: b.NextMode, Text: b.Text, BaseUnits: b.BaseUnits}
	for _, p := range b.Parts {
		out.Parts = append(out.Parts, ConvertedLevel{Level: display.UnitName(p.Level, p.Amount), Amount: p.Amount})
	}
	return out
}

// NewFormatCommand creates the format command.
func NewFormatCommand(rootOpts *RootOptions) *cobra.Command {
	var levelsFlag, modeFlag string
	var all bool

	cmd := &cobra.Command{
		Use:     "format <base-units>",
		Short:   "Render a base-unit balance as the POS shows it",
		Example: `  stockctl format 235 --levels "Pack/Packs:10,Card/Cards:10,Tablet/Tablets" --mode skipOne`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || total < 0 {
				return fmt.Errorf("invalid base-unit balance %q", args[0])
			}
			levels, err := ParseLevels(levelsFlag)
			if err != nil {
				return err
			}

			modes := packaging.Modes
			if !all {
				mode, err := packaging.ParseMode(modeFlag)
				if err != nil {
					return err
				}
				modes = []packaging.Mode{mode}
			}

			item := &domain.InventoryItem{PackagingLevels: levels, CurrentStockBaseUnits: total}
			balances := make([]FormattedBalance, len(modes))
			for i, m := range modes {
				balances[i] = formatted(display.Render(item, m))
			}

			p := printer{format: rootOpts.Output, w: cmd.OutOrStdout()}
			var v any = balances
			if !all {
				v = balances[0]
			}
			return p.print(v, func(w io.Writer) error {
				for _, b := range balances {
					line := b.Text
					if all {
						line = fmt.Sprintf("%-9s %s", b.Mode, b.Text)
					}
					if err := fprintln(w, "%s", line); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&levelsFlag, "levels", "", "packaging hierarchy, largest level first")
	cmd.Flags().StringVar(&modeFlag, "mode", string(packaging.ModeFull), "display mode (full|skipOne|baseOnly)")
	cmd.Flags().BoolVar(&all, "all", false, "render every display mode")
	_ = cmd.MarkFlagRequired("levels")

	return cmd
}
