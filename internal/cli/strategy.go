package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"options-calculator/internal/options"
	"options-calculator/internal/strategyfile"
)

// defaultTableMargin is how far past the outer strikes the default
// profit/loss projection reaches.
const defaultTableMargin = 5

func newStrategyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy <file.yaml>",
		Short: "Evaluate a multi-leg strategy from a YAML file",
		Long: `Evaluate a multi-leg strategy described in a YAML file: net premium,
capital committed, max profit and loss, break-evens and a profit/loss table.

Example file:
  name: Bull Call Spread
  bias: bullish
  symbol: SPY
  underlying_price: 100
  as_of: 2026-10-17
  legs:
    - {kind: call, long: true,  strike: 100, ask: 4,   expiration: 2026-11-20}
    - {kind: call, long: false, strike: 110, bid: 1.5, expiration: 2026-11-20}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)

			file, err := strategyfile.Load(args[0])
			if err != nil {
				return err
			}
			strategy, err := file.Strategy()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			target, _ := cmd.Flags().GetFloat64("target")
			noTable, _ := cmd.Flags().GetBool("no-table")
			from, to := profitLossRange(cmd, strategy)

			app.Logger.Debug().
				Str("strategy", strategy.Name()).
				Int("legs", len(strategy.Legs())).
				Msg("Strategy evaluated")

			if output.IsJSON() {
				view := struct {
					StrategyView
					ProfitLoss *options.ProfitLossTable `json:"profit_loss,omitempty"`
				}{StrategyView: NewStrategyView(strategy, target)}
				if !noTable {
					table := strategy.ProfitLossTable(from, to)
					view.ProfitLoss = &table
				}
				return output.JSON(view)
			}

			output.Bold("%s (%s)", strategy.Name(), output.Bias(strategy.Bias()))
			output.Lines(strategy.Summary())
			if target > 0 {
				output.Printf("  Risk:Reward at %.2f: %s\n", target, FormatRiskReward(strategy.RiskReward(target)))
			}

			if noTable {
				return nil
			}
			output.Println()
			return renderProfitLoss(output, strategy.ProfitLossTable(from, to))
		},
	}

	cmd.Flags().Float64("target", 0, "target underlying price for risk:reward")
	cmd.Flags().Float64("from", 0, "first price of the profit/loss table (default: lowest strike - 5)")
	cmd.Flags().Float64("to", 0, "end price of the profit/loss table, exclusive (default: highest strike + 6)")
	cmd.Flags().Bool("no-table", false, "skip the profit/loss table")

	return cmd
}

// profitLossRange resolves --from/--to, defaulting to a band around the strikes.
func profitLossRange(cmd *cobra.Command, s *options.Strategy) (float64, float64) {
	strikes := s.Strikes()
	from, _ := cmd.Flags().GetFloat64("from")
	to, _ := cmd.Flags().GetFloat64("to")
	if !cmd.Flags().Changed("from") {
		from = strikes[0] - defaultTableMargin
		if from < 0 {
			from = 0
		}
	}
	if !cmd.Flags().Changed("to") {
		to = strikes[len(strikes)-1] + defaultTableMargin + 1
	}
	return from, to
}

func renderProfitLoss(output *Output, pl options.ProfitLossTable) error {
	headers := append([]string{"Price"}, pl.Legs...)
	headers = append(headers, "Payoff", "R:R")
	table := NewTable(output, headers...)
	for _, row := range pl.Rows {
		cells := []string{FormatAmount(row.Price)}
		for _, p := range row.LegPayoffs {
			cells = append(cells, FormatAmount(p))
		}
		cells = append(cells, output.Amount(row.Payoff), FormatRiskReward(row.RiskReward))
		table.AddRow(cells...)
	}
	if table.Len() == 0 {
		output.Dim("No prices in range")
		return nil
	}
	return table.Render()
}
