package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/models"
	"options-calculator/internal/options"
	"options-calculator/internal/screener"
	"options-calculator/internal/store"
)

// chainEngine is a ChainSource that may hold resources.
type chainEngine interface {
	screener.ChainSource
	Len() int
}

// openChain builds the configured chain engine over rows.
func openChain(ctx context.Context, backend, symbol string, underlying float64, asOfDate string, rows []models.ChainRow, filter chain.LiquidityFilter) (chainEngine, func() error, error) {
	asOf, err := chain.ParseDate(asOfDate)
	if err != nil {
		return nil, nil, apperrors.NewValidationError("as-of", asOfDate, "must be YYYY-MM-DD")
	}

	switch backend {
	case "memory":
		c, err := chain.New(symbol, underlying, asOf, rows, filter)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	case "sqlite":
		c, err := store.NewSQLiteChain(ctx, symbol, underlying, asOf, rows, filter)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, apperrors.NewValidationError("backend", backend, "must be memory or sqlite")
	}
}

// loadRows reads a combined chain CSV, or a calls/puts snapshot directory.
func loadRows(path, date string) ([]models.ChainRow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain: %w", err)
	}
	if info.IsDir() {
		return chain.LoadSnapshotDir(path, date)
	}
	return chain.LoadCSV(path)
}

func newScreenCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen <chain.csv | snapshot-dir>",
		Short: "Screen an options chain for the best strategy of each shape",
		Long: `Screen an options chain for every canonical strategy shape and rank the
best instance of each by risk:reward at the target price.

The chain is either one CSV with a type column, or a directory holding
calls/<date>.csv and puts/<date>.csv.

Examples:
  optcalc screen chain.csv --underlying 100 --target 104 --as-of 2026-10-17
  optcalc screen snapshots/ --underlying 100 --target 95 --days 45 --backend sqlite --all
  optcalc screen chain.csv --underlying 100 --target 95,100,105 --as-of 2026-10-17`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := app.newOutput(cmd)

			underlying, _ := cmd.Flags().GetFloat64("underlying")
			targets, _ := cmd.Flags().GetFloat64Slice("target")
			asOf, err := parseAsOf(cmd)
			if err != nil {
				return err
			}
			asOfDate := FormatDate(asOf)

			days := app.Config.Screener.TargetDays
			if cmd.Flags().Changed("days") {
				days, _ = cmd.Flags().GetInt("days")
			}
			backend := app.Config.Chain.Backend
			if cmd.Flags().Changed("backend") {
				backend, _ = cmd.Flags().GetString("backend")
			}
			topOnly := app.Config.Screener.TopOnly
			if all, _ := cmd.Flags().GetBool("all"); all {
				topOnly = false
			}
			filter := app.Config.LiquidityFilter()
			if noFilter, _ := cmd.Flags().GetBool("no-liquidity-filter"); noFilter {
				filter = chain.NoLiquidityFilter()
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
			app.Logger.Debug().
				Str("backend", backend).
				Int("rows", len(rows)).
				Int("admitted", source.Len()).
				Msg("Chain loaded")

			runs, err := screener.ScreenTargets(ctx, source, targets, days, app.Config.Screener.Workers, app.Logger)
			if err != nil {
				return err
			}
			// A single target reports its own failure as the command error.
			if len(runs) == 1 && runs[0].Err != nil {
				return runs[0].Err
			}

			if output.IsJSON() {
				views := make([]ScreenView, len(runs))
				for i, run := range runs {
					views[i] = newScreenView(run, source, asOfDate, backend, topOnly)
				}
				if len(views) == 1 {
					return output.JSON(views[0])
				}
				return output.JSON(views)
			}

			output.Bold("%s @ %.2f as of %s", source.Symbol(), source.UnderlyingPrice(), asOfDate)
			output.Dim("%s backend, %d of %d rows admitted", backend, source.Len(), len(rows))
			for _, run := range runs {
				output.Println()
				if err := renderRun(output, run, topOnly); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "underlying symbol (default: chain.symbol from config)")
	cmd.Flags().Float64("underlying", 0, "underlying price")
	cmd.Flags().Float64Slice("target", nil, "target underlying price; repeat or comma-separate to screen several")
	cmd.Flags().Int("days", 0, "days ahead to look for an expiration (default: screener.target_days)")
	cmd.Flags().String("as-of", "", "chain date, also the snapshot file name (default: today)")
	cmd.Flags().String("backend", "", "chain engine: memory or sqlite (default: chain.backend)")
	cmd.Flags().Bool("all", false, "list every strategy, not only the best per shape")
	cmd.Flags().Bool("no-liquidity-filter", false, "admit every row regardless of volume and quotes")
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

// newScreenView builds the JSON view of one target run.
func newScreenView(run screener.TargetRun, source chainEngine, asOfDate, backend string, topOnly bool) ScreenView {
	view := ScreenView{
		Symbol:      source.Symbol(),
		Underlying:  source.UnderlyingPrice(),
		AsOf:        asOfDate,
		Backend:     backend,
		TargetPrice: run.Target,
	}
	if run.Err != nil {
		view.Error = run.Err.Error()
		return view
	}

	s := run.Screener
	view.RunID = s.RunID()
	view.Timeframe = s.Timeframe()
	view.TargetStrike = s.TargetStrike()
	view.Top = make([]StrategyView, 0, len(run.Ranking.Top))
	view.Stats = screener.Summarize(run.Results, s.TargetPrice())
	for _, pick := range run.Ranking.Ordered() {
		view.Top = append(view.Top, NewStrategyView(pick.Strategy, s.TargetPrice()))
	}
	for _, res := range run.Results {
		if res.Err != nil {
			if view.Failures == nil {
				view.Failures = make(map[string]string)
			}
			view.Failures[string(res.Shape)] = res.Err.Error()
		}
		if topOnly {
			continue
		}
		for _, strategy := range res.Strategies {
			view.Strategies = append(view.Strategies, NewStrategyView(strategy, s.TargetPrice()))
		}
	}
	return view
}

// renderRun prints the ranking, optional full listing and statistics of one
// target run.
func renderRun(output *Output, run screener.TargetRun, topOnly bool) error {
	if run.Err != nil {
		output.Error("✗ Target %.2f: %v", run.Target, run.Err)
		return nil
	}

	s := run.Screener
	output.Bold("Target %.2f (strike %.2f) in %d days", s.TargetPrice(), s.TargetStrike(), s.Timeframe())
	output.Dim("run %s", s.RunID())

	if err := renderRanking(output, run.Ranking); err != nil {
		return err
	}
	for _, res := range run.Results {
		if res.Err != nil {
			output.Warning("⚠ %s skipped: %v", res.Shape, res.Err)
		}
	}

	if !topOnly {
		for _, res := range run.Results {
			if len(res.Strategies) == 0 {
				continue
			}
			output.Println()
			output.Bold("%s (%d)", res.Shape, len(res.Strategies))
			if err := renderStrategies(output, res.Strategies, s.TargetPrice()); err != nil {
				return err
			}
		}
	}

	output.Println()
	return renderStats(output, screener.Summarize(run.Results, s.TargetPrice()))
}

func renderRanking(output *Output, ranking screener.Ranking) error {
	ordered := ranking.Ordered()
	if len(ordered) == 0 {
		output.Warning("No strategies found")
		return nil
	}

	table := NewTable(output, "#", "Shape", "Bias", "Legs", "Net", "Max Profit", "Max Loss", "Break-evens", "R:R")
	for i, pick := range ordered {
		st := pick.Strategy
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			string(pick.Shape),
			output.Bias(st.Bias()),
			FormatLegs(st),
			FormatAmount(st.NetPremium()),
			output.Amount(st.MaxProfit()),
			output.Amount(st.MaxLoss()),
			FormatPrices(st.BreakEvens()),
			FormatRiskReward(pick.RiskReward),
		)
	}
	return table.Render()
}

func renderStrategies(output *Output, strategies []*options.Strategy, target float64) error {
	table := NewTable(output, "Legs", "Net", "Capital", "Max Profit", "Max Loss", "Break-evens", "R:R")
	for _, st := range strategies {
		table.AddRow(
			FormatLegs(st),
			FormatAmount(st.NetPremium()),
			FormatCurrency(st.CapitalCommitted()),
			output.Amount(st.MaxProfit()),
			output.Amount(st.MaxLoss()),
			FormatPrices(st.BreakEvens()),
			FormatRiskReward(st.RiskReward(target)),
		)
	}
	return table.Render()
}

func renderStats(output *Output, summary []screener.ShapeStats) error {
	table := NewTable(output, "Shape", "Count", "Mean R:R", "Median R:R", "Best", "Worst")
	for _, st := range summary {
		if st.Failed {
			table.AddRow(string(st.Shape), output.Red("failed"), "-", "-", "-", "-")
			continue
		}
		if st.Count == 0 {
			table.AddRow(string(st.Shape), "0", "-", "-", "-", "-")
			continue
		}
		table.AddRow(
			string(st.Shape),
			fmt.Sprintf("%d", st.Count),
			FormatRiskReward(st.Mean),
			FormatRiskReward(st.Median),
			FormatRiskReward(st.Best),
			FormatRiskReward(st.Worst),
		)
	}
	return table.Render()
}

func newShapesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shapes",
		Short: "List the strategy shapes the screener builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)
			if output.IsJSON() {
				type shapeView struct {
					Name string `json:"name"`
					Slug string `json:"slug"`
					Bias string `json:"bias"`
				}
				views := make([]shapeView, len(screener.AllShapes))
				for i, shape := range screener.AllShapes {
					views[i] = shapeView{Name: string(shape), Slug: shape.Slug(), Bias: shape.Bias()}
				}
				return output.JSON(views)
			}

			table := NewTable(output, "Shape", "Slug", "Bias")
			for _, shape := range screener.AllShapes {
				table.AddRow(string(shape), shape.Slug(), output.Bias(shape.Bias()))
			}
			return table.Render()
		},
	}
}
