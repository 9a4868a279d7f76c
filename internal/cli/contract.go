package cli

import (
	"time"

	"github.com/spf13/cobra"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
)

// parseAsOf reads the --as-of flag, defaulting to today.
func parseAsOf(cmd *cobra.Command) (time.Time, error) {
	value, _ := cmd.Flags().GetString("as-of")
	if value == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := chain.ParseDate(value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("as-of", value, "must be YYYY-MM-DD")
	}
	return t, nil
}

func (a *App) symbolFlag(cmd *cobra.Command) string {
	symbol, _ := cmd.Flags().GetString("symbol")
	if symbol == "" {
		return a.Config.Chain.Symbol
	}
	return symbol
}

func newContractCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Value a single option contract",
		Long: `Value a single option contract: premium, moneyness, intrinsic and time
value, capital committed, break-even and days to expiry.

Examples:
  optcalc contract --underlying 100 --strike 105 --ask 2 --expiration 2026-11-20
  optcalc contract --type put --short --underlying 100 --strike 95 --bid 1.9 --ask 2 --expiration 2026-11-20 --at 90,95,100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)

			kindFlag, _ := cmd.Flags().GetString("type")
			kind, ok := models.ParseOptionKind(kindFlag)
			if !ok {
				return apperrors.NewValidationError("type", kindFlag, "must be call or put")
			}
			expFlag, _ := cmd.Flags().GetString("expiration")
			expiration, err := chain.ParseDate(expFlag)
			if err != nil {
				return apperrors.NewValidationError("expiration", expFlag, "must be YYYY-MM-DD")
			}
			asOf, err := parseAsOf(cmd)
			if err != nil {
				return err
			}

			underlying, _ := cmd.Flags().GetFloat64("underlying")
			strike, _ := cmd.Flags().GetFloat64("strike")
			bid, _ := cmd.Flags().GetFloat64("bid")
			ask, _ := cmd.Flags().GetFloat64("ask")
			iv, _ := cmd.Flags().GetFloat64("iv")
			volume, _ := cmd.Flags().GetInt64("volume")
			short, _ := cmd.Flags().GetBool("short")
			prices, _ := cmd.Flags().GetFloat64Slice("at")

			contract, err := options.NewContract(options.ContractSpec{
				Symbol:            app.symbolFlag(cmd),
				UnderlyingPrice:   underlying,
				Strike:            strike,
				Bid:               bid,
				Ask:               ask,
				ImpliedVolatility: iv,
				Volume:            volume,
				Expiration:        expiration,
				Kind:              kind,
				Long:              !short,
				AsOf:              asOf,
			})
			if err != nil {
				return err
			}
			app.Logger.Debug().Str("contract", contract.Identifier()).Msg("Contract valued")

			if output.IsJSON() {
				payoffs := make(map[string]float64, len(prices))
				for _, p := range prices {
					payoffs[FormatAmount(p)] = contract.PayoffAt(p)
				}
				return output.JSON(struct {
					ContractView
					Payoffs map[string]float64 `json:"payoffs,omitempty"`
				}{NewContractView(contract), payoffs})
			}

			output.Bold("%s %s", contract.Direction(), contract.Identifier())
			output.Lines(contract.Summary())
			if contract.DaysToExpiry() < 0 {
				output.Warning("Contract expired %d days ago", -contract.DaysToExpiry())
			}

			if len(prices) > 0 {
				output.Println()
				table := NewTable(output, "Price", "Payoff", "Per Contract")
				for _, p := range prices {
					payoff := contract.PayoffAt(p)
					table.AddRow(FormatAmount(p), output.Amount(payoff), FormatCurrency(payoff*options.ContractMultiplier))
				}
				return table.Render()
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "underlying symbol (default: chain.symbol from config)")
	cmd.Flags().Float64("underlying", 0, "underlying price")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().Float64("bid", 0, "bid price")
	cmd.Flags().Float64("ask", 0, "ask price")
	cmd.Flags().Float64("iv", 0, "implied volatility as a fraction")
	cmd.Flags().Int64("volume", 0, "traded volume")
	cmd.Flags().String("expiration", "", "expiration date (YYYY-MM-DD)")
	cmd.Flags().String("type", "call", "option type: call or put")
	cmd.Flags().Bool("short", false, "short (written) position")
	cmd.Flags().String("as-of", "", "valuation date (default: today)")
	cmd.Flags().Float64Slice("at", nil, "underlying prices to evaluate the payoff at")
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("strike")
	_ = cmd.MarkFlagRequired("expiration")

	return cmd
}
