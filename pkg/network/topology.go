package network

import "fmt"

func (b *Builder) addRegions(n *Network) {
	n.Regions = make([]Region, 0, len(b.settings.Regions))
	for _, id := range b.settings.Regions {
		n.Regions = append(n.Regions, Region{ID: id, Carrier: CarrierAC})
	}
	b.log.Debugf("Added %d region nodes", len(n.Regions))
}

// addCorridors expands every configured corridor into two directed links with
// identical parameters.
func (b *Builder) addCorridors(n *Network, src CapacitySource) error {
	n.Links = make([]DirectedLink, 0, 2*len(b.settings.Corridors))
	for _, c := range b.settings.Corridors {
		sizing, err := b.settings.Policy.Resolve(c, n.Year, src)
		if err != nil {
			return err
		}

		forward := b.newLink(c.A, c.B, sizing)
		reverse := b.newLink(c.B, c.A, sizing)
		n.Links = append(n.Links, forward, reverse)
	}
	b.log.Debugf("Added %d transmission links (bidirectional)", len(n.Links))
	return nil
}

func (b *Builder) newLink(from, to string, s LinkSizing) DirectedLink {
	return DirectedLink{
		Name:        LinkName(from, to),
		From:        from,
		To:          to,
		Capacity:    s.Capacity,
		Extendable:  s.Extendable,
		MaxCapacity: s.MaxCapacity,
		MinPerUnit:  -1,
		MaxPerUnit:  1,
		HurdleCost:  b.settings.HurdleCost,
	}
}

// validateTopology checks region and corridor references for a year.
func (s Settings) validateTopology(year int) error {
	if len(s.Regions) == 0 {
		return &ConfigError{Year: year, Subject: "regions", Err: fmt.Errorf("%w: no regions configured", ErrUnknownRegion)}
	}
	known := make(map[string]bool, len(s.Regions))
	for _, r := range s.Regions {
		if r == "" {
			return &ConfigError{Year: year, Subject: "regions", Err: fmt.Errorf("%w: empty region id", ErrUnknownRegion)}
		}
		if known[r] {
			return &ConfigError{Year: year, Subject: "regions", Err: fmt.Errorf("duplicate region %q", r)}
		}
		known[r] = true
	}

	seen := make(map[Corridor]bool, len(s.Corridors))
	for _, c := range s.Corridors {
		subject := "corridor " + c.String()
		if !known[c.A] {
			return &ConfigError{Year: year, Subject: subject, Err: fmt.Errorf("%w %q", ErrUnknownRegion, c.A)}
		}
		if !known[c.B] {
			return &ConfigError{Year: year, Subject: subject, Err: fmt.Errorf("%w %q", ErrUnknownRegion, c.B)}
		}
		if c.A == c.B {
			return &ConfigError{Year: year, Subject: subject, Err: fmt.Errorf("%w: self loop", ErrInvalidCorridor)}
		}
		if seen[c] || seen[Corridor{A: c.B, B: c.A}] {
			return &ConfigError{Year: year, Subject: subject, Err: fmt.Errorf("%w: duplicate corridor", ErrInvalidCorridor)}
		}
		seen[c] = true
	}
	return nil
}
