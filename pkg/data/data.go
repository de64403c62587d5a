// Package data loads the input tables a planning run is built from. A source
// is either a local directory or an http(s) base URL holding the same files.
package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/sw33tLie/powerlole/pkg/whttp"
)

const (
	DemandFile       = "demand.csv"
	TransmissionFile = "transmission.json"
	DemandScaleFile  = "demand_scale.json"
	GeneratorsFile   = "generators.json"
	ProfilesFile     = "profiles.csv"
)

var (
	ErrMissingCapacity = errors.New("no transmission capacity recorded")
	ErrInvalidData     = errors.New("invalid input data")
)

type Options struct {
	// Client is used for http(s) sources. A default retrying client is
	// created when nil.
	Client *retryablehttp.Client
	Proxy  string
	Log    network.Logger
}

type pair struct{ a, b string }

func pairOf(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

// Processor holds every input table of a run. It is read-only once loaded
// and safe for concurrent use; callers must not modify returned slices.
type Processor struct {
	snapshots  []network.Snapshot
	demand     map[string][]float64
	capacity   map[pair]map[int]float64
	scale      map[int]map[string]float64
	generators map[int][]network.GeneratorRecord
	profiles   map[string][]float64
}

var _ network.Provider = (*Processor)(nil)

// Load reads all input files from source. profiles.csv is optional; every
// other file must exist.
func Load(ctx context.Context, source string, opts Options) (*Processor, error) {
	log := opts.Log
	if log == nil {
		log = network.NopLogger()
	}

	r, err := newReader(source, opts)
	if err != nil {
		return nil, err
	}

	p := &Processor{}

	raw, err := r.read(ctx, DemandFile, false)
	if err != nil {
		return nil, err
	}
	if p.snapshots, p.demand, err = parseDemand(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", DemandFile, err)
	}
	log.Debugf("Loaded %d snapshots for %d regions from %s", len(p.snapshots), len(p.demand), source)

	if raw, err = r.read(ctx, TransmissionFile, false); err != nil {
		return nil, err
	}
	if p.capacity, err = parseTransmission(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", TransmissionFile, err)
	}

	if raw, err = r.read(ctx, DemandScaleFile, false); err != nil {
		return nil, err
	}
	if p.scale, err = parseDemandScale(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", DemandScaleFile, err)
	}

	if raw, err = r.read(ctx, GeneratorsFile, false); err != nil {
		return nil, err
	}
	if p.generators, err = parseGenerators(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", GeneratorsFile, err)
	}

	raw, err = r.read(ctx, ProfilesFile, true)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		log.Debugf("No %s in %s, variable generators will run without profiles", ProfilesFile, source)
		p.profiles = map[string][]float64{}
	} else if p.profiles, err = parseProfiles(raw, len(p.snapshots)); err != nil {
		return nil, fmt.Errorf("%s: %w", ProfilesFile, err)
	}

	return p, nil
}

func (p *Processor) Timestamps() []network.Snapshot { return p.snapshots }

func (p *Processor) DemandData() map[string][]float64 { return p.demand }

func (p *Processor) DemandScaleFactors(year int) map[string]float64 { return p.scale[year] }

func (p *Processor) GeneratorsData(year int) []network.GeneratorRecord { return p.generators[year] }

func (p *Processor) RenewableProfile(region, technology string) ([]float64, bool) {
	v, ok := p.profiles[network.GeneratorName(region, technology)]
	return v, ok
}

// TransmissionCapacity looks a corridor up in either orientation.
func (p *Processor) TransmissionCapacity(a, b string, year int) (float64, error) {
	byYear, ok := p.capacity[pairOf(a, b)]
	if !ok {
		return 0, fmt.Errorf("%w for corridor %s-%s", ErrMissingCapacity, a, b)
	}
	v, ok := byYear[year]
	if !ok {
		return 0, fmt.Errorf("%w for corridor %s-%s in %d", ErrMissingCapacity, a, b, year)
	}
	return v, nil
}

// Years lists every year that has generator records.
func (p *Processor) Years() []int {
	years := make([]int, 0, len(p.generators))
	for y := range p.generators {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

type reader struct {
	base   string
	remote bool
	client *retryablehttp.Client
}

func newReader(source string, opts Options) (*reader, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: empty data source", ErrInvalidData)
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := opts.Client
		if client == nil {
			var err error
			if client, err = whttp.NewClient(opts.Proxy, 3); err != nil {
				return nil, err
			}
		}
		return &reader{base: strings.TrimRight(source, "/"), remote: true, client: client}, nil
	}
	return &reader{base: source}, nil
}

// read returns nil without error when an optional file does not exist.
func (r *reader) read(ctx context.Context, name string, optional bool) ([]byte, error) {
	if r.remote {
		body, err := whttp.Get(ctx, r.client, r.base+"/"+name)
		var status *whttp.StatusError
		if optional && errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return body, err
	}

	raw, err := os.ReadFile(filepath.Join(r.base, name))
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return raw, nil
}
