package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/medflow/pharmacy-stock/internal/inventory/display"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/spf13/cobra"
)

// ConvertResult is the outcome of a convert run.
type ConvertResult struct {
	BaseUnits   int64            `json:"base_units" yaml:"base_units"`
	Multipliers []int64          `json:"multipliers" yaml:"multipliers"`
	Parts       []ConvertedLevel `json:"parts,omitempty" yaml:"parts,omitempty"`
}

// ConvertedLevel is one level's share of a decomposed total.
type ConvertedLevel struct {
	Level  string `json:"level" yaml:"level"`
	Amount int64  `json:"amount" yaml:"amount"`
}

type convertOptions struct {
	levels  string
	amounts string
	total   string
	mode    string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between per-level amounts and base units",
		Long: `Convert packaging quantities for a hierarchy.

With --amounts the per-level amounts are composed into a base-unit total.
With --total the base-unit total is broken down per level.`,
		Example: `  stockctl convert --levels "Pack/Packs:10,Card/Cards:10,Tablet/Tablets" --amounts 2,3,5
  stockctl convert --levels "Box/Boxes:12,Ampoule/Ampoules" --total 30 --mode full`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.levels, "levels", "", "packaging hierarchy, largest level first")
	cmd.Flags().StringVar(&opts.amounts, "amounts", "", "per-level amounts, largest level first")
	cmd.Flags().StringVar(&opts.total, "total", "", "base-unit total to break down")
	cmd.Flags().StringVar(&opts.mode, "mode", string(packaging.ModeFull), "breakdown mode (full|skipOne|baseOnly)")
	_ = cmd.MarkFlagRequired("levels")
	cmd.MarkFlagsMutuallyExclusive("amounts", "total")
	cmd.MarkFlagsOneRequired("amounts", "total")

	return cmd
}

func runConvert(rootOpts *RootOptions, opts *convertOptions, cmd *cobra.Command) error {
	levels, err := ParseLevels(opts.levels)
	if err != nil {
		return err
	}
	mults, err := packaging.Multipliers(levels)
	if err != nil {
		return err
	}
	result := ConvertResult{Multipliers: mults}

	if opts.amounts != "" {
		amounts, err := ParseAmounts(opts.amounts)
		if err != nil {
			return err
		}
		if result.BaseUnits, err = packaging.Compose(levels, amounts); err != nil {
			return err
		}
	} else {
		mode, err := packaging.ParseMode(opts.mode)
		if err != nil {
			return err
		}
		total, err := strconv.ParseInt(opts.total, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid total %q", opts.total)
		}
		parts, err := packaging.Decompose(levels, total, mode)
		if err != nil {
			return err
		}
		result.BaseUnits = total
		for _, p := range parts {
			result.Parts = append(result.Parts, ConvertedLevel{Level: display.UnitName(p.Level, p.Amount), Amount: p.Amount})
		}
	}

	base, _ := levels.Base()
	p := printer{format: rootOpts.Output, w: cmd.OutOrStdout()}
	return p.print(result, func(w io.Writer) error {
		if len(result.Parts) == 0 {
			return fprintln(w, "%d %s", result.BaseUnits, display.UnitName(base, result.BaseUnits))
		}
		for _, part := range result.Parts {
			if err := fprintln(w, "%-12s %d", part.Level, part.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}
