package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/powerlole/internal/utils"
	"github.com/sw33tLie/powerlole/pkg/data"
	"github.com/sw33tLie/powerlole/pkg/network"
	"gopkg.in/yaml.v3"
)

// buildCmd assembles one year without solving it. Useful to check data gaps
// and corridor sizing before a long run.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble the network of one planning year without solving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		output, _ := cmd.Flags().GetString("output")
		if output != "summary" && output != "yaml" {
			return fmt.Errorf("invalid output format %q (available: summary, yaml)", output)
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		if src, _ := cmd.Flags().GetString("data"); src != "" {
			c.Data.Source = src
		}
		settings, err := c.NetworkSettings()
		if err != nil {
			return err
		}

		proxy, _ := cmd.Flags().GetString("proxy")
		provider, err := data.Load(cmd.Context(), c.Data.Source, data.Options{Proxy: proxy, Log: utils.Log})
		if err != nil {
			return fmt.Errorf("loading data from %s: %w", c.Data.Source, err)
		}

		res, err := network.NewBuilder(settings, utils.Log).Build(cmd.Context(), year, provider)
		if err != nil {
			return err
		}
		tier, _ := settings.Policy.TierFor(year)
		view := newBuildView(res, tier)

		if output == "yaml" {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(view)
		}
		printBuildSummary(os.Stdout, view)
		return nil
	},
}

type linkView struct {
	Name        string  `yaml:"name"`
	Capacity    float64 `yaml:"capacity"`
	Extendable  bool    `yaml:"extendable"`
	MaxCapacity string  `yaml:"max_capacity"`
	HurdleCost  float64 `yaml:"hurdle_cost"`
}

type loadView struct {
	Name   string  `yaml:"name"`
	Peak   float64 `yaml:"peak"`
	Energy float64 `yaml:"energy"`
}

type generatorView struct {
	Name         string  `yaml:"name"`
	Technology   string  `yaml:"technology"`
	Capacity     string  `yaml:"capacity"`
	MarginalCost float64 `yaml:"marginal_cost"`
	MinPerUnit   float64 `yaml:"min_pu"`
	Profile      bool    `yaml:"profile"`
}

type buildView struct {
	Year       int               `yaml:"year"`
	Tier       string            `yaml:"tier"`
	Snapshots  int               `yaml:"snapshots"`
	Regions    []string          `yaml:"regions"`
	Links      []linkView        `yaml:"links"`
	Loads      []loadView        `yaml:"loads"`
	Generators []generatorView   `yaml:"generators"`
	Warnings   []network.Warning `yaml:"warnings,omitempty"`
}

func newBuildView(res *network.BuildResult, tier network.Tier) buildView {
	n := res.Network
	v := buildView{Year: n.Year, Snapshots: len(n.Snapshots), Warnings: res.Warnings}
	if tier != nil {
		v.Tier = tier.String()
	}
	for _, r := range n.Regions {
		v.Regions = append(v.Regions, r.ID)
	}
	for _, l := range n.Links {
		v.Links = append(v.Links, linkView{
			Name:        l.Name,
			Capacity:    l.Capacity,
			Extendable:  l.Extendable,
			MaxCapacity: l.MaxCapacity.String(),
			HurdleCost:  l.HurdleCost,
		})
	}
	for _, l := range n.Loads {
		lv := loadView{Name: l.Name}
		for t, d := range l.Demand {
			if d > lv.Peak {
				lv.Peak = d
			}
			lv.Energy += d * n.Snapshots[t].Weight
		}
		v.Loads = append(v.Loads, lv)
	}
	for _, g := range n.Generators {
		v.Generators = append(v.Generators, generatorView{
			Name:         g.Name,
			Technology:   g.Technology,
			Capacity:     g.Capacity.String(),
			MarginalCost: g.MarginalCost,
			MinPerUnit:   g.MinPerUnit,
			Profile:      g.Availability != nil,
		})
	}
	return v
}

func printBuildSummary(out io.Writer, v buildView) {
	fmt.Fprintf(out, "Year %d (%s tier): %d snapshots, %d regions\n\n", v.Year, v.Tier, v.Snapshots, len(v.Regions))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LINK\tCAPACITY\tEXTENDABLE\tMAX\t")
	for _, l := range v.Links {
		fmt.Fprintf(w, "%s\t%g\t%t\t%s\t\n", l.Name, l.Capacity, l.Extendable, l.MaxCapacity)
	}
	fmt.Fprintln(w, " \t \t \t \t")
	fmt.Fprintln(w, "GENERATOR\tCAPACITY\tCOST\tMIN PU\t")
	for _, g := range v.Generators {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t\n", g.Name, g.Capacity, g.MarginalCost, g.MinPerUnit)
	}
	fmt.Fprintln(w, " \t \t \t \t")
	fmt.Fprintln(w, "LOAD\tPEAK\tENERGY\t \t")
	for _, l := range v.Loads {
		fmt.Fprintf(w, "%s\t%g\t%g\t \t\n", l.Name, l.Peak, l.Energy)
	}
	w.Flush()

	if len(v.Warnings) > 0 {
		fmt.Fprintln(out)
		for _, warn := range v.Warnings {
			fmt.Fprintf(out, "%s %s\n", color.YellowString("[WARN]"), warn.Message)
		}
	}
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().IntP("year", "y", 0, "Planning year to assemble")
	buildCmd.Flags().StringP("output", "o", "summary", "Output format: summary or yaml")
	buildCmd.Flags().String("data", "", "Data directory or http(s) URL")
	buildCmd.MarkFlagRequired("year")
}
