package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/powerlole/internal/utils"
	"github.com/sw33tLie/powerlole/pkg/config"
	"github.com/sw33tLie/powerlole/pkg/data"
	"github.com/sw33tLie/powerlole/pkg/metrics"
	"github.com/sw33tLie/powerlole/pkg/optimize"
	"github.com/sw33tLie/powerlole/pkg/pipeline"
	"github.com/sw33tLie/powerlole/pkg/storage"
)

// runCmd implements: powerlole run
//
//	--years ints         Planning years to run (default: all configured years)
//	--output-dir string  Directory for per-year exports
//	--solver string      meritorder or exec
//	--concurrency int    Years solved in parallel
//	--fail-fast          Stop after the first failing year
//	--db string          Record the run in this SQLite database
//	--data string        Data directory or URL
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, solve and analyze every planning year",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'powerlole run --help'", args[0])
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, c); err != nil {
			return err
		}

		settings, err := c.NetworkSettings()
		if err != nil {
			return err
		}
		opt, err := optimize.New(c.OptimizerSettings())
		if err != nil {
			return err
		}

		proxy, _ := cmd.Flags().GetString("proxy")
		provider, err := data.Load(cmd.Context(), c.Data.Source, data.Options{Proxy: proxy, Log: utils.Log})
		if err != nil {
			return fmt.Errorf("loading data from %s: %w", c.Data.Source, err)
		}

		pcfg := pipeline.Config{
			Years:        c.RunYears(),
			Settings:     settings,
			Provider:     provider,
			Optimizer:    opt,
			Analyzer:     c.Analyzer(),
			OutputDir:    c.Results.OutputDir,
			SaveNetworks: c.Results.SaveNetworks,
			Concurrency:  c.Run.Concurrency,
			FailFast:     c.Run.FailFast,
			DataSource:   c.Data.Source,
			Log:          utils.Log,
		}

		if c.Results.MetricsFile != "" {
			pcfg.Metrics = metrics.NewRun()
			pcfg.MetricsFile = c.Results.MetricsFile
		}

		if c.Results.DB != "" {
			lock, err := utils.LockResults(cmd.Context(), c.Results.DB)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			db, err := storage.Open(lock.Path)
			if err != nil {
				return fmt.Errorf("opening results database: %w", err)
			}
			defer db.Close()
			pcfg.DB = db
		}

		var mu sync.Mutex
		pcfg.OnYearDone = func(yr pipeline.YearResult) {
			mu.Lock()
			defer mu.Unlock()
			printYearLine(os.Stdout, yr)
		}

		res, runErr := pipeline.Run(cmd.Context(), pcfg)
		if res == nil {
			return runErr
		}

		fmt.Println()
		printSummary(os.Stdout, res)
		if pcfg.DB != nil {
			fmt.Printf("\nRun %s recorded in %s\n", res.RunID, c.Results.DB)
		}

		if failed := res.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d of %d years failed", len(failed), len(res.Years))
		}
		return runErr
	},
}

// applyRunFlags lets explicit flags override the configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("years") {
		c.Run.Years, _ = f.GetIntSlice("years")
	}
	if f.Changed("output-dir") {
		c.Results.OutputDir, _ = f.GetString("output-dir")
	}
	if f.Changed("solver") {
		c.Solver.Name, _ = f.GetString("solver")
	}
	if f.Changed("concurrency") {
		c.Run.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("fail-fast") {
		c.Run.FailFast, _ = f.GetBool("fail-fast")
	}
	if f.Changed("db") {
		c.Results.DB, _ = f.GetString("db")
	}
	if f.Changed("data") {
		c.Data.Source, _ = f.GetString("data")
	}
	if f.Changed("metrics-file") {
		c.Results.MetricsFile, _ = f.GetString("metrics-file")
	}
	return c.Validate()
}

func printYearLine(w io.Writer, yr pipeline.YearResult) {
	if yr.Err != nil {
		fmt.Fprintf(w, "%s %d %s\n", color.RedString("[FAIL]"), yr.Year, yr.Err)
		return
	}
	rel := yr.Reliability
	lole := fmt.Sprintf("LOLE %g %s", rel.System.LOLE, rel.Unit())
	if rel.System.LOLE > 0 {
		lole = color.YellowString(lole)
	}
	fmt.Fprintf(w, "%s %d (%s) %s in %s\n", color.GreenString("[OK]"), yr.Year, yr.Tier, lole, yr.Elapsed.Round(time.Millisecond))
}

func printSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "YEAR\tTIER\tSTATUS\tSYSTEM LOLE\tUNSERVED\tWARNINGS\tELAPSED\t")

	for _, yr := range res.Years {
		if yr.Err != nil {
			stage := ""
			if ye, ok := yr.Err.(*pipeline.YearError); ok {
				stage = " (" + string(ye.Stage) + ")"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t-\t-\t%d\t%s\t\n", yr.Year, orDash(yr.Tier), "failed"+stage, len(yr.Warnings), yr.Elapsed.Round(time.Millisecond))
			continue
		}
		rel := yr.Reliability
		fmt.Fprintf(w, "%d\t%s\t%s\t%g %s\t%g\t%d\t%s\t\n", yr.Year, yr.Tier, "ok",
			rel.System.LOLE, rel.Unit(), rel.System.UnservedEnergy, len(yr.Warnings), yr.Elapsed.Round(time.Millisecond))
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntSlice("years", nil, "Planning years to run (default: all configured years)")
	runCmd.Flags().String("output-dir", "", "Directory for per-year exports (default from config: results)")
	runCmd.Flags().String("solver", "", "Solver to use: meritorder or exec")
	runCmd.Flags().Int("concurrency", 0, "Number of years solved in parallel")
	runCmd.Flags().Bool("fail-fast", false, "Stop after the first failing year")
	runCmd.Flags().String("db", "", "Record the run in this SQLite database")
	runCmd.Flags().String("data", "", "Data directory or http(s) URL")
	runCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file")
}
