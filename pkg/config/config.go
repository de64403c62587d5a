// Package config maps the viper configuration tree onto typed settings for
// the builder, the optimizer and the run pipeline.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/optimize"
	"github.com/sw33tLie/powerlole/pkg/reliability"
)

const EnvPrefix = "POWERLOLE"

type Config struct {
	Network struct {
		Regions []string   `mapstructure:"regions" validate:"required,min=1,dive,required"`
		Links   [][]string `mapstructure:"links" validate:"dive,len=2,dive,required"`
	} `mapstructure:"network"`

	Planning struct {
		BaseYear int        `mapstructure:"base_year" validate:"required,gt=0"`
		Years    []YearTier `mapstructure:"years" validate:"required,min=1,dive"`
	} `mapstructure:"planning"`

	Optimization struct {
		ENSCost              float64            `mapstructure:"ens_cost" validate:"required,gt=0"`
		HurdleCost           float64            `mapstructure:"transmission_hurdle_cost" validate:"gte=0"`
		DefaultMarginalCost  float64            `mapstructure:"default_marginal_cost" validate:"gte=0"`
		MinTechnicalOutput   map[string]float64 `mapstructure:"min_technical_output" validate:"dive,gte=0,lte=1"`
		MarginalCosts        map[string]float64 `mapstructure:"marginal_costs"`
		VariableTechnologies []string           `mapstructure:"variable_technologies"`
	} `mapstructure:"optimization"`

	Reliability struct {
		Tolerance float64 `mapstructure:"tolerance" validate:"gte=0"`
	} `mapstructure:"reliability"`

	Solver struct {
		Name    string        `mapstructure:"name" validate:"omitempty,oneof=meritorder exec"`
		Command string        `mapstructure:"command" validate:"required_if=Name exec"`
		Args    []string      `mapstructure:"args"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"solver"`

	Data struct {
		Source string `mapstructure:"source" validate:"required"`
	} `mapstructure:"data"`

	Results struct {
		OutputDir    string `mapstructure:"output_dir" validate:"required"`
		SaveNetworks bool   `mapstructure:"save_networks"`
		DB           string `mapstructure:"db"`
		MetricsFile  string `mapstructure:"metrics_file"`
	} `mapstructure:"results"`

	Run struct {
		Years       []int `mapstructure:"years"`
		Concurrency int   `mapstructure:"concurrency" validate:"gte=0"`
		FailFast    bool  `mapstructure:"fail_fast"`
	} `mapstructure:"run"`
}

// YearTier assigns a capacity expansion tier to a planning year.
type YearTier struct {
	Year int    `mapstructure:"year" validate:"gt=0"`
	Tier string `mapstructure:"tier" validate:"required"`
}

// SetDefaults registers default values for every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("optimization.default_marginal_cost", network.DefaultMarginalCost)
	v.SetDefault("optimization.transmission_hurdle_cost", 0.0)
	v.SetDefault("optimization.variable_technologies", network.DefaultVariableTechnologies)
	v.SetDefault("reliability.tolerance", reliability.DefaultTolerance)
	v.SetDefault("solver.name", optimize.MeritOrderName)
	v.SetDefault("solver.command", "")
	v.SetDefault("solver.timeout", 30*time.Minute)
	v.SetDefault("data.source", "./data")
	v.SetDefault("results.output_dir", "results")
	v.SetDefault("results.save_networks", true)
	v.SetDefault("results.db", "")
	v.SetDefault("results.metrics_file", "")
	v.SetDefault("run.concurrency", 2)
	v.SetDefault("run.fail_fast", false)
}

// BindEnv enables POWERLOLE_* environment overrides, e.g.
// POWERLOLE_SOLVER_NAME for solver.name.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field constraints and the relations between sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	regions := make(map[string]bool, len(c.Network.Regions))
	for _, r := range c.Network.Regions {
		if regions[r] {
			return fmt.Errorf("config validation failed: region %q listed twice", r)
		}
		regions[r] = true
	}

	seen := make(map[network.Corridor]bool)
	for _, l := range c.Network.Links {
		a, b := l[0], l[1]
		if !regions[a] || !regions[b] {
			return fmt.Errorf("config validation failed: link %s-%s references an unknown region", a, b)
		}
		if a == b {
			return fmt.Errorf("config validation failed: link %s-%s connects a region to itself", a, b)
		}
		if seen[network.Corridor{A: a, B: b}] || seen[network.Corridor{A: b, B: a}] {
			return fmt.Errorf("config validation failed: link %s-%s listed twice", a, b)
		}
		seen[network.Corridor{A: a, B: b}] = true
	}

	years := make(map[int]bool)
	for _, y := range c.Planning.Years {
		if years[y.Year] {
			return fmt.Errorf("config validation failed: planning year %d listed twice", y.Year)
		}
		years[y.Year] = true
		if _, err := network.ParseTier(y.Tier); err != nil {
			return fmt.Errorf("config validation failed: year %d: %w", y.Year, err)
		}
	}
	return nil
}

// Policy returns the capacity expansion policy of the planning section.
func (c *Config) Policy() (network.Policy, error) {
	p := network.Policy{BaseYear: c.Planning.BaseYear, Tiers: make(map[int]network.Tier, len(c.Planning.Years))}
	for _, y := range c.Planning.Years {
		t, err := network.ParseTier(y.Tier)
		if err != nil {
			return network.Policy{}, err
		}
		p.Tiers[y.Year] = t
	}
	return p, nil
}

func (c *Config) NetworkSettings() (network.Settings, error) {
	policy, err := c.Policy()
	if err != nil {
		return network.Settings{}, err
	}

	defaultCost := c.Optimization.DefaultMarginalCost
	corridors := make([]network.Corridor, 0, len(c.Network.Links))
	for _, l := range c.Network.Links {
		corridors = append(corridors, network.Corridor{A: l[0], B: l[1]})
	}

	return network.Settings{
		Regions:              append([]string(nil), c.Network.Regions...),
		Corridors:            corridors,
		Policy:               policy,
		ENSCost:              c.Optimization.ENSCost,
		HurdleCost:           c.Optimization.HurdleCost,
		MinOutput:            c.Optimization.MinTechnicalOutput,
		MarginalCosts:        c.Optimization.MarginalCosts,
		DefaultMarginalCost:  &defaultCost,
		VariableTechnologies: c.Optimization.VariableTechnologies,
	}, nil
}

func (c *Config) OptimizerSettings() optimize.Settings {
	return optimize.Settings{
		Name:    c.Solver.Name,
		Command: c.Solver.Command,
		Args:    c.Solver.Args,
		Timeout: c.Solver.Timeout,
	}
}

func (c *Config) Analyzer() reliability.Analyzer {
	return reliability.Analyzer{Tolerance: c.Reliability.Tolerance}
}

// RunYears is the sorted, de-duplicated list of years to run. An empty
// run.years selects every planning year. Requested years without a tier are
// kept so the run reports them as failed.
func (c *Config) RunYears() []int {
	src := c.Run.Years
	if len(src) == 0 {
		for _, y := range c.Planning.Years {
			src = append(src, y.Year)
		}
	}

	seen := make(map[int]bool, len(src))
	out := make([]int, 0, len(src))
	for _, y := range src {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}
