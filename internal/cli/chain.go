package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
)

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <chain.csv | snapshot-dir>",
		Short: "Show the admitted rows of an options chain",
		Long: `Load an options chain, apply the liquidity floor and list the rows that
match every --where predicate, with their expiration bucket and moneyness.

Predicates compare a field with a value: strike, expiration_bucket, volume,
bid, ask and implied_volatility take =, !=, >, >=, < and <=; moneyness
takes = or != with ITM, ATM or OTM.

Examples:
  optcalc chain chain.csv --underlying 100 --type put --where "moneyness = OTM"
  optcalc chain chain.csv --underlying 100 --where "strike >= 95" --where "expiration_bucket = 34"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := app.newOutput(cmd)

			underlying, _ := cmd.Flags().GetFloat64("underlying")
			asOf, err := parseAsOf(cmd)
			if err != nil {
				return err
			}
			asOfDate := FormatDate(asOf)

			backend := app.Config.Chain.Backend
			if cmd.Flags().Changed("backend") {
				backend, _ = cmd.Flags().GetString("backend")
			}
			filter := app.Config.LiquidityFilter()
			if noFilter, _ := cmd.Flags().GetBool("no-liquidity-filter"); noFilter {
				filter = chain.NoLiquidityFilter()
			}

			kinds := []models.OptionKind{models.OptionKindCall, models.OptionKindPut}
			if kindFlag, _ := cmd.Flags().GetString("type"); kindFlag != "" && kindFlag != "all" {
				kind, ok := models.ParseOptionKind(kindFlag)
				if !ok {
					return apperrors.NewValidationError("type", kindFlag, "must be call, put or all")
				}
				kinds = []models.OptionKind{kind}
			}

			wheres, _ := cmd.Flags().GetStringArray("where")
			preds := make([]chain.Predicate, 0, len(wheres))
			for _, w := range wheres {
				p, err := chain.ParsePredicate(w)
				if err != nil {
					return apperrors.NewValidationError("where", w, err.Error())
				}
				preds = append(preds, p)
			}

			rows, err := loadRows(args[0], asOfDate)
			if err != nil {
				return err
			}
			source, closeChain, err := openChain(ctx, backend, app.symbolFlag(cmd), underlying, asOfDate, rows, filter)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeChain(); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to close chain")
				}
			}()

			var matched []models.ChainRow
			for _, kind := range kinds {
				got, err := source.Filter(ctx, preds, kind)
				if err != nil {
					return err
				}
				matched = append(matched, got...)
			}
			app.Logger.Debug().
				Str("backend", backend).
				Int("admitted", source.Len()).
				Int("matched", len(matched)).
				Msg("Chain filtered")

			if output.IsJSON() {
				return output.JSON(models.OptionChain{
					Symbol:          source.Symbol(),
					UnderlyingPrice: source.UnderlyingPrice(),
					AsOf:            source.AsOf(),
					Rows:            matched,
				})
			}

			output.Bold("%s @ %.2f as of %s", source.Symbol(), source.UnderlyingPrice(), asOfDate)
			output.Dim("%d of %d admitted rows match (%d loaded)", len(matched), source.Len(), len(rows))
			if len(matched) == 0 {
				return nil
			}

			table := NewTable(output, "Type", "Strike", "Bid / Ask", "IV", "Volume", "Expiration", "Days", "Moneyness")
			for _, r := range matched {
				table.AddRow(
					string(r.Kind),
					FormatAmount(r.Strike),
					FormatBidAsk(r.Bid, r.Ask),
					FormatIV(r.ImpliedVolatility),
					FormatVolume(r.Volume),
					FormatDate(r.Expiration),
					fmt.Sprintf("%d", r.ExpirationBucket),
					string(r.Moneyness),
				)
			}
			return table.Render()
		},
	}

	cmd.Flags().String("symbol", "", "underlying symbol (default: chain.symbol from config)")
	cmd.Flags().Float64("underlying", 0, "underlying price")
	cmd.Flags().String("as-of", "", "chain date, also the snapshot file name (default: today)")
	cmd.Flags().String("backend", "", "chain engine: memory or sqlite (default: chain.backend)")
	cmd.Flags().String("type", "all", "option type: call, put or all")
	cmd.Flags().StringArray("where", nil, "row predicate, e.g. \"strike >= 100\" (repeatable)")
	cmd.Flags().Bool("no-liquidity-filter", false, "admit every row regardless of volume and quotes")
	_ = cmd.MarkFlagRequired("underlying")

	return cmd
}
