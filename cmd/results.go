package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/powerlole/internal/utils"
	"github.com/sw33tLie/powerlole/pkg/storage"
)

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect runs recorded in the results database",
}

// resultsDBPath picks --db, then results.db from the config, then the
// default location.
func resultsDBPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = viper.GetString("results.db")
	}
	abs, err := utils.ResultsDBPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return "", fmt.Errorf("database file not found: %s", abs)
	}
	return abs, nil
}

func openResults(cmd *cobra.Command) (*storage.DB, error) {
	path, err := resultsDBPath(cmd)
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// runsCmd lists recorded runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openResults(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := db.ListRuns(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs in the database.")
			return nil
		}
		printRuns(os.Stdout, runs)
		return nil
	},
}

func printRuns(out io.Writer, runs []storage.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSOLVER\tYEARS\tDURATION\t")
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), colorStatus(r.Status), r.Solver, yearsList(r.Years), duration)
	}
	w.Flush()
}

// showCmd prints the per-year and per-region results of one run
var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of one run (a unique id prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openResults(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		run, err := db.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		years, err := db.RunYears(ctx, run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s (%s, solver %s, data %s)\n\n", run.ID, colorStatus(run.Status), run.Solver, orDash(run.DataSource))
		for _, y := range years {
			if y.Status == storage.YearFailed {
				fmt.Printf("%s %d failed during %s: %s\n\n", color.RedString("[FAIL]"), y.Year, y.Stage, y.Error)
				continue
			}
			regions, err := db.RegionLOLE(ctx, run.ID, y.Year)
			if err != nil {
				return err
			}
			fmt.Printf("%d (%s tier), objective %g, %d warnings\n", y.Year, orDash(y.Tier), y.Objective, y.Warnings)
			printRegions(os.Stdout, y.Unit, regions)
			fmt.Println()
		}
		return nil
	},
}

func printRegions(out io.Writer, unit string, regions []storage.RegionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "REGION\tLOLE (%s)\tEVENTS\tUNSERVED\tPEAK\t\n", unit)
	for _, r := range regions {
		fmt.Fprintf(w, "%s\t%g\t%d\t%g\t%g\t\n", r.Region, r.LOLE, r.Events, r.UnservedEnergy, r.PeakUnserved)
	}
	w.Flush()
}

func colorStatus(s string) string {
	switch s {
	case storage.RunSucceeded:
		return color.GreenString(s)
	case storage.RunFailed:
		return color.RedString(s)
	}
	return color.YellowString(s)
}

func yearsList(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, ",")
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the results database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resultsDBPath(cmd)
		if err != nil {
			return err
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the results shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(runsCmd)
	resultsCmd.AddCommand(showCmd)
	resultsCmd.AddCommand(shellCmd)
	resultsCmd.PersistentFlags().String("db", "", "Path to the results SQLite file (default from config, then ~/.config/powerlole/results.sqlite)")
	runsCmd.Flags().Int("limit", 20, "Number of runs to list")
}
