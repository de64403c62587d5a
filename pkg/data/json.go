package data

import (
	"fmt"
	"strconv"

	"github.com/sw33tLie/powerlole/pkg/network"
	"github.com/tidwall/gjson"
)

func parseJSON(raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: not valid JSON", ErrInvalidData)
	}
	return gjson.ParseBytes(raw), nil
}

func parseYear(key gjson.Result) (int, error) {
	y, err := strconv.Atoi(key.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a year", ErrInvalidData, key.String())
	}
	return y, nil
}

func number(v gjson.Result, what string) (float64, error) {
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidData, what, v.Raw)
	}
	return v.Float(), nil
}

// parseTransmission reads
//
//	{"corridors":[{"regions":["a","b"],"capacity":{"2020":1000}}]}
func parseTransmission(raw []byte) (map[pair]map[int]float64, error) {
	doc, err := parseJSON(raw)
	if err != nil {
		return nil, err
	}
	corridors := doc.Get("corridors")
	if !corridors.IsArray() {
		return nil, fmt.Errorf("%w: missing corridors array", ErrInvalidData)
	}

	out := make(map[pair]map[int]float64)
	for i, c := range corridors.Array() {
		regions := c.Get("regions").Array()
		if len(regions) != 2 || regions[0].String() == "" || regions[1].String() == "" {
			return nil, fmt.Errorf("%w: corridor %d needs exactly two regions", ErrInvalidData, i)
		}
		key := pairOf(regions[0].String(), regions[1].String())
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: corridor %s-%s listed twice", ErrInvalidData, key.a, key.b)
		}

		byYear := make(map[int]float64)
		var perr error
		c.Get("capacity").ForEach(func(k, v gjson.Result) bool {
			var year int
			if year, perr = parseYear(k); perr != nil {
				return false
			}
			var capacity float64
			if capacity, perr = number(v, "capacity"); perr != nil {
				return false
			}
			if capacity < 0 {
				perr = fmt.Errorf("%w: corridor %s-%s has negative capacity in %d", ErrInvalidData, key.a, key.b, year)
				return false
			}
			byYear[year] = capacity
			return true
		})
		if perr != nil {
			return nil, perr
		}
		out[key] = byYear
	}
	return out, nil
}

// parseDemandScale reads {"2030":{"north":1.3}}.
func parseDemandScale(raw []byte) (map[int]map[string]float64, error) {
	doc, err := parseJSON(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[int]map[string]float64)
	var perr error
	doc.ForEach(func(k, v gjson.Result) bool {
		var year int
		if year, perr = parseYear(k); perr != nil {
			return false
		}
		factors := make(map[string]float64)
		v.ForEach(func(region, f gjson.Result) bool {
			factors[region.String()], perr = number(f, "scale factor")
			return perr == nil
		})
		out[year] = factors
		return perr == nil
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// parseGenerators reads {"2020":[{"region":"north","type":"coal","capacity":500}]}.
func parseGenerators(raw []byte) (map[int][]network.GeneratorRecord, error) {
	doc, err := parseJSON(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[int][]network.GeneratorRecord)
	var perr error
	doc.ForEach(func(k, v gjson.Result) bool {
		var year int
		if year, perr = parseYear(k); perr != nil {
			return false
		}
		if !v.IsArray() {
			perr = fmt.Errorf("%w: generators for %d must be an array", ErrInvalidData, year)
			return false
		}
		records := make([]network.GeneratorRecord, 0, len(v.Array()))
		for i, g := range v.Array() {
			rec := network.GeneratorRecord{
				Region:     g.Get("region").String(),
				Technology: g.Get("type").String(),
			}
			if rec.Region == "" || rec.Technology == "" {
				perr = fmt.Errorf("%w: generator %d of %d needs region and type", ErrInvalidData, i, year)
				return false
			}
			if rec.Capacity, perr = number(g.Get("capacity"), "capacity"); perr != nil {
				return false
			}
			records = append(records, rec)
		}
		out[year] = records
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}
