// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// annotationNoStorage marks commands that run without opening storage
const annotationNoStorage = "no-storage"

// app holds what PersistentPreRunE builds for the subcommands
type app struct {
	configPath string
	debug      bool
	jsonLogs   bool

	config  *Config
	logger  *Logger
	storage *Storage
	service *Service
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ecometer",
		Short: "Track water and electricity meter readings",
		Long: `ecometer records household water and electricity meter readings,
analyses consumption, estimates bills and exports the data.

Examples:
  ecometer add water 12500 --date 2025-01-15
  ecometer analyze electricity
  ecometer bill water --history 6
  ecometer report electricity --format html --output report.html
  ecometer serve`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonLogs, "json-logs", false, "Write logs as JSON")

	root.AddCommand(
		a.addCommand(),
		a.listCommand(),
		a.updateCommand(),
		a.deleteCommand(),
		a.analyzeCommand(),
		a.statsCommand(),
		a.billCommand(),
		a.alertsCommand(),
		a.reportCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.chartCommand(),
		a.pricesCommand(),
		a.migrateCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)

	return root
}

// setup loads configuration and opens storage
func (a *app) setup(cmd *cobra.Command, args []string) error {
	explicit := cmd.Flags().Changed("config")
	config, err := LoadConfig(a.configPath, explicit)
	if err != nil {
		return err
	}

	if a.debug {
		config.Debug = true
	}
	if a.jsonLogs {
		config.JSONLogs = true
	}

	if config.JSONLogs {
		a.logger = NewJSONLogger(config.Debug)
	} else {
		a.logger = NewLogger(config.Debug)
	}
	a.config = config

	if cmd.Annotations[annotationNoStorage] == "true" {
		return nil
	}

	if err := config.Validate(); err != nil {
		return err
	}

	a.logger.Debug("Starting ecometer", "version", GetVersion(), "backend", config.StorageBackend)

	storage, err := NewStorage(cmd.Context(), config, a.logger)
	if err != nil {
		return err
	}
	a.storage = storage
	a.service = NewService(config, storage, a.logger)

	return nil
}

func (a *app) teardown() error {
	if a.storage == nil {
		return nil
	}
	err := a.storage.Close()
	a.storage = nil
	return err
}

func parseValueArg(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ValidationError{Field: "index", Value: s, Message: "must be a number"}
	}
	return v, nil
}

func parseIDArg(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "id", Value: s, Message: "must be a positive integer"}
	}
	return id, nil
}

// parseDateFlag parses --date, defaulting to today
func parseDateFlag(s string, now time.Time) (Date, error) {
	if s == "" {
		return NewDate(now), nil
	}
	return ParseDate(s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) addCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "add <water|electricity> <index>",
		Short: "Record a meter reading",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(args[0])
			if err != nil {
				return err
			}
			value, err := parseValueArg(args[1])
			if err != nil {
				return err
			}
			d, err := parseDateFlag(date, time.Now())
			if err != nil {
				return err
			}

			r, err := a.service.AddReading(cmd.Context(), t, value, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added reading #%d: %s %s %s on %s\n",
				r.ID, r.Type, humanize.Commaf(r.Value), r.Type.Unit(), r.Date.Display())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Reading date as YYYY-MM-DD (default today)")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var (
		utility string
		period  string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List readings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var t UtilityType
			if utility != "" {
				parsed, err := ParseUtilityType(utility)
				if err != nil {
					return err
				}
				t = parsed
			}

			readings, err := a.service.ListReadings(cmd.Context(), t)
			if err != nil {
				return err
			}
			readings, err = FilterByPeriod(readings, period, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, readings)
			}
			if len(readings) == 0 {
				fmt.Fprintln(out, "No readings recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-6s %-12s %-12s %14s\n", "ID", "Date", "Type", "Index")
			for _, r := range readings {
				fmt.Fprintf(out, "%-6d %-12s %-12s %14s\n",
					r.ID, r.Date.Display(), r.Type, humanize.Commaf(r.Value)+" "+r.Type.Unit())
			}
			fmt.Fprintf(out, "\n%s reading(s)\n", humanize.Comma(int64(len(readings))))
			return nil
		},
	}

	cmd.Flags().StringVar(&utility, "type", "", "Only list water or electricity")
	cmd.Flags().StringVar(&period, "period", PeriodAll, "Period: week, month, 3months, year or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "update <id> <water|electricity> <index>",
		Short: "Replace a reading",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			t, err := ParseUtilityType(args[1])
			if err != nil {
				return err
			}
			value, err := parseValueArg(args[2])
			if err != nil {
				return err
			}
			d, err := ParseDate(date)
			if err != nil {
				return err
			}

			if err := a.service.UpdateReading(cmd.Context(), id, t, value, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated reading #%d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Reading date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if err := a.service.DeleteReading(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted reading #%d\n", id)
			return nil
		},
	}
}

func (a *app) analyzeCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <water|electricity>",
		Short: "Analyse consumption, trend and alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(args[0])
			if err != nil {
				return err
			}

			analysis, err := a.service.Analyze(cmd.Context(), t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, analysis)
			}
			printAnalysis(out, analysis)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printAnalysis(w io.Writer, analysis *ConsumptionAnalysis) {
	if analysis.IsEmpty() {
		fmt.Fprintf(w, "Not enough %s readings to analyse (at least 2 needed).\n", analysis.Type)
		return
	}

	unit := analysis.Type.Unit()
	fmt.Fprintf(w, "%s consumption\n\n", analysis.Type)
	fmt.Fprintf(w, "  Average:  %s %s\n", humanize.Commaf(analysis.Daily.Average), unit)
	fmt.Fprintf(w, "  Highest:  %s %s\n", humanize.Commaf(analysis.Daily.Max), unit)
	fmt.Fprintf(w, "  Lowest:   %s %s\n", humanize.Commaf(analysis.Daily.Min), unit)
	fmt.Fprintf(w, "  Total:    %s %s\n\n", humanize.Commaf(analysis.Daily.Total), unit)

	fmt.Fprintf(w, "  Weekly average:   %s (%d weeks)\n", humanize.Commaf(analysis.Weekly.Average), len(analysis.Weekly.Groups))
	fmt.Fprintf(w, "  Monthly average:  %s (%d months)\n\n", humanize.Commaf(analysis.Monthly.Average), len(analysis.Monthly.Groups))

	trend := analysis.Trend
	fmt.Fprintf(w, "  Trend: %s, %s (slope %.4g, R² %.2f)\n", trend.Direction, trend.Strength, trend.Slope, trend.RSquared)
	if n := len(trend.Forecast); n > 0 {
		last := trend.Forecast[n-1]
		fmt.Fprintf(w, "  Forecast: %s on %s\n", humanize.Commaf(last.Value), last.Date.Display())
	}

	if len(analysis.Alerts) > 0 {
		fmt.Fprintf(w, "\nAlerts:\n")
		for _, alert := range analysis.Alerts {
			fmt.Fprintf(w, "  [%s] %s\n", alert.Severity, alert.Message)
		}
	}

	recs := GenerateRecommendations(analysis)
	fmt.Fprintf(w, "\nRecommendations:\n")
	for _, rec := range recs {
		fmt.Fprintf(w, "  [%s] %s: %s\n", rec.Priority, rec.Title, rec.Action)
	}
}

func (a *app) statsCommand() *cobra.Command {
	var (
		period string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats <water|electricity>",
		Short: "Describe the raw index series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(args[0])
			if err != nil {
				return err
			}

			stats, err := a.service.Statistics(cmd.Context(), t, period)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, stats)
			}
			if stats == nil {
				fmt.Fprintf(out, "No %s readings in this period.\n", t)
				return nil
			}

			fmt.Fprintf(out, "%s statistics (%s)\n\n", t, period)
			fmt.Fprintf(out, "  Readings:            %d\n", stats.Count)
			fmt.Fprintf(out, "  Average:             %s\n", humanize.Commaf(stats.Average))
			fmt.Fprintf(out, "  Min / Max:           %s / %s\n", humanize.Commaf(stats.Min), humanize.Commaf(stats.Max))
			fmt.Fprintf(out, "  Standard deviation:  %s\n", humanize.Commaf(stats.StandardDeviation))
			fmt.Fprintf(out, "  Variation:           %s\n", FormatPercentage(stats.CoefficientOfVariation))
			fmt.Fprintf(out, "  Trend:               %s\n", stats.Trend)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", PeriodAll, "Period: week, month, 3months, year or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) billCommand() *cobra.Command {
	var (
		history   int
		actual    float64
		reduction float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "bill <water|electricity>",
		Short: "Estimate the bill since the start of last month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("history") {
				bills, err := a.service.BillHistory(cmd.Context(), t, history)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, bills)
				}
				if len(bills) == 0 {
					fmt.Fprintf(out, "No complete month with enough %s readings.\n", t)
					return nil
				}
				for _, b := range bills {
					fmt.Fprintf(out, "%-16s %14s %s  %12s\n",
						b.Label, humanize.Commaf(b.Consumption), t.Unit(), FormatCurrency(b.Estimate))
				}
				return nil
			}

			bill, err := a.service.Bill(cmd.Context(), t)
			if err != nil {
				return err
			}

			var comparison *BillComparison
			var savings *SavingsEstimate
			if bill.Estimate != nil {
				if cmd.Flags().Changed("actual") {
					c := CompareWithActualBill(bill.Estimate.BillEstimate, actual, bill.Estimate.Period)
					comparison = &c
				}
				if cmd.Flags().Changed("reduction") {
					s := CalculateSavings(bill.Estimate.Consumption, reduction, bill.Estimate.UnitPrice)
					savings = &s
				}
			}

			if asJSON {
				return writeJSON(out, struct {
					*Bill
					Comparison *BillComparison  `json:"comparison,omitempty"`
					Savings    *SavingsEstimate `json:"savings,omitempty"`
				}{bill, comparison, savings})
			}

			if bill.Estimate == nil {
				fmt.Fprintf(out, "Not enough %s readings since the start of last month.\n", t)
				return nil
			}

			e := bill.Estimate
			fmt.Fprintf(out, "%s bill estimate (%s)\n\n", t, e.Period)
			fmt.Fprintf(out, "  Consumption:        %s %s\n", humanize.Commaf(e.Consumption), t.Unit())
			fmt.Fprintf(out, "  Estimate:           %s\n", FormatCurrency(e.Estimate))
			fmt.Fprintf(out, "  Daily cost:         %s\n", FormatCurrency(e.DailyCost))
			fmt.Fprintf(out, "  Annual projection:  %s\n", FormatCurrency(e.AnnualProjection))
			if c := bill.Cost; c != nil {
				fmt.Fprintf(out, "  With subscription and VAT (%s): %s\n", c.VATLabel, FormatCurrency(c.Total))
			}
			if comparison != nil {
				fmt.Fprintf(out, "\n  Actual bill %s is %s than estimated (%s, %s)\n",
					FormatCurrency(comparison.Actual), comparison.Status,
					FormatCurrency(comparison.Difference), FormatPercentage(comparison.DifferencePercent))
			}
			if savings != nil {
				fmt.Fprintf(out, "\n  Reducing by %s saves %s %s, %s\n",
					FormatPercentage(savings.ReductionPercent), humanize.Commaf(savings.SavedConsumption),
					t.Unit(), FormatCurrency(savings.SavedAmount))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "Show per-month estimates for the last N months (0 uses the configured default)")
	cmd.Flags().Float64Var(&actual, "actual", 0, "Compare the estimate with an actual invoice amount")
	cmd.Flags().Float64Var(&reduction, "reduction", 0, "Project savings for a percentage reduction")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) alertsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List consumption and budget alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := a.service.Alerts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, alerts)
			}
			if len(alerts) == 0 {
				fmt.Fprintln(out, "No alerts.")
				return nil
			}
			for _, alert := range alerts {
				a.logger.LogAlertRaised(alert)
				fmt.Fprintf(out, "%s [%s] %s\n", severityIndicator(alert.Severity), alert.Severity, alert.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	var (
		format string
		output string
		save   bool
		load   string
		latest bool
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "report [water|electricity]",
		Short: "Generate a consumption report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage := a.service.Storage()

			if list {
				files, err := storage.ListReports()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			var (
				report *Report
				t      UtilityType
				err    error
			)

			switch {
			case load != "":
				report, err = storage.LoadReport(load)
				if err != nil {
					return err
				}
				t = report.Summary.Type
			default:
				if len(args) == 0 {
					return &ValidationError{Field: "type", Message: "a utility is required"}
				}
				t, err = ParseUtilityType(args[0])
				if err != nil {
					return err
				}
				if latest {
					report, err = storage.LoadLatestReport(t)
					if err != nil {
						return err
					}
					if report == nil {
						return fmt.Errorf("no saved %s report: %w", t, ErrNotFound)
					}
				} else {
					report, err = a.service.Report(cmd.Context(), t)
					if err != nil {
						return err
					}
				}
			}

			if save && load == "" && !latest {
				id, err := storage.SaveReport(report)
				if err != nil {
					return err
				}
				a.logger.Info("Report snapshot saved", "id", id)
			}

			switch format {
			case "md", "markdown":
				return NewReporter(a.logger).GenerateReport(report, output)
			case "html":
				chart, err := a.service.Chart(cmd.Context(), ChartLine, t, PeriodAll)
				if err != nil {
					a.logger.Debug("Report chart unavailable", "error", err)
				}
				return NewHTMLReporter(a.logger).GenerateHTMLReport(report, output, chart)
			case "json":
				if output == "" {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close()
				return writeJSON(f, report)
			}
			return &ValidationError{Field: "format", Value: format, Message: "must be md, html or json"}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Output format: md, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&save, "save", false, "Save a JSON snapshot of the report")
	cmd.Flags().StringVar(&load, "load", "", "Render a saved snapshot by id")
	cmd.Flags().BoolVar(&latest, "latest", false, "Render the latest saved snapshot")
	cmd.Flags().BoolVar(&list, "list", false, "List saved snapshots")
	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export readings as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return a.service.ExportCSV(cmd.Context(), cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()

			if err := a.service.ExportCSV(cmd.Context(), f); err != nil {
				return err
			}
			a.logger.Info("Readings exported", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import readings from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			n, err := a.service.ImportCSV(cmd.Context(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s reading(s)\n", humanize.Comma(int64(n)))
			return err
		},
	}
}

func (a *app) chartCommand() *cobra.Command {
	var (
		utility string
		period  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "chart <line|bar|pie>",
		Short: "Render a chart to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(utility)
			if err != nil {
				return err
			}

			png, err := a.service.Chart(cmd.Context(), args[0], t, period)
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("%s_%s.png", args[0], t.Slug())
			}
			if err := os.WriteFile(output, png, 0644); err != nil {
				return fmt.Errorf("failed to write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s (%s)\n", output, humanize.Bytes(uint64(len(png))))
			return nil
		},
	}

	cmd.Flags().StringVar(&utility, "type", "water", "Utility for line and bar charts")
	cmd.Flags().StringVar(&period, "period", PeriodAll, "Period: week, month, 3months, year or all")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG file")
	return cmd
}

func (a *app) pricesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show or change prices and budget",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the price configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book := a.service.Storage().Prices
			config, err := book.Load(cmd.Context())
			if err != nil {
				return err
			}
			custom, err := book.IsCustom(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Water:                    %s per L\n", FormatCurrency(config.WaterPrice))
			fmt.Fprintf(out, "Electricity:              %s per kWh\n", FormatCurrency(config.ElectricityPrice))
			fmt.Fprintf(out, "Water subscription:       %s\n", FormatCurrency(config.WaterSubscription))
			fmt.Fprintf(out, "Electricity subscription: %s\n", FormatCurrency(config.ElectricitySubscription))
			fmt.Fprintf(out, "VAT:                      %s%%\n", strconv.FormatFloat(config.VAT, 'f', -1, 64))
			fmt.Fprintf(out, "Monthly budget:           %s\n", FormatCurrency(config.MonthlyBudget))
			fmt.Fprintf(out, "Alerts: over budget %t, abnormal consumption %t, rising trend %t\n",
				config.Alerts.OverBudget, config.Alerts.AbnormalConsumption, config.Alerts.RisingTrend)
			if !custom {
				fmt.Fprintln(out, "(defaults)")
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <water|electricity> <unit-price>",
		Short: "Set the unit price of a utility",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ParseUtilityType(args[0])
			if err != nil {
				return err
			}
			price, err := parseValueArg(args[1])
			if err != nil {
				return err
			}
			if err := a.service.Storage().Prices.UpdatePrice(cmd.Context(), t, price); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s price set to %s\n", t, FormatCurrency(price))
			return nil
		},
	}

	budget := &cobra.Command{
		Use:   "budget <amount>",
		Short: "Set the monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseValueArg(args[0])
			if err != nil {
				return err
			}
			if err := a.service.Storage().Prices.UpdateBudget(cmd.Context(), amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monthly budget set to %s\n", FormatCurrency(amount))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.Storage().Prices.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Prices reset to defaults")
			return nil
		},
	}

	cmd.AddCommand(show, set, budget, reset)
	return cmd
}

func (a *app) migrateCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy file readings into the SQL backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage := a.service.Storage()
			sqlStore, ok := storage.Readings.(*SQLReadingStore)
			if !ok {
				return &ConfigError{Field: "storage_backend", Message: "migrate needs the sqlite or postgres backend"}
			}

			if force {
				if err := ClearMigrationFlag(cmd.Context(), storage.Blobs()); err != nil {
					return err
				}
			}

			result, err := MigrateBlobReadings(cmd.Context(), storage.Blobs(), storage.Readings, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "Migration already completed (use --force to run again)")
				return nil
			}
			fmt.Fprintf(out, "Migrated %d of %d reading(s), %d failed\n", result.Migrated, result.Total, result.Failed)

			count, err := sqlStore.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "The database now holds %s reading(s)\n", humanize.Comma(count))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Migrate again even if already completed")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.config.ListenAddr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go CheckForUpdates(ctx, a.logger)

			if !a.config.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			server := NewServer(a.service, a.config, a.logger.WithComponent("http"))
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config)")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoStorage: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ecometer %s\n", GetVersion())
			return nil
		},
	}
}
