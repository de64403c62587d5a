package network

// GeneratorRecord is one externally provided generator entry.
type GeneratorRecord struct {
	Region     string
	Technology string
	Capacity   float64
}

// Provider is the data collaborator the builder reads from. Implementations
// must be safe for concurrent use by several years at once.
type Provider interface {
	CapacitySource

	// Timestamps is the ordered snapshot index shared by every entity of a year.
	Timestamps() []Snapshot
	// DemandData is the raw per-region demand, one value per snapshot.
	DemandData() map[string][]float64
	DemandScaleFactors(year int) map[string]float64
	GeneratorsData(year int) []GeneratorRecord
	// RenewableProfile is the per-snapshot availability fraction of a
	// variable generator, or false when no profile exists.
	RenewableProfile(region, technology string) ([]float64, bool)
}
