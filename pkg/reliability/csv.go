package reliability

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

var csvHeader = []string{"region", "lole", "unit", "lole_hours", "events", "unserved_energy", "peak_unserved"}

// WriteCSV writes one row per region followed by the SYSTEM row.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	rows := append(append([]RegionResult(nil), r.Regions...), r.System)
	for _, rr := range rows {
		if err := cw.Write([]string{
			rr.Region,
			formatFloat(rr.LOLE),
			r.Unit(),
			formatFloat(r.LOLEHours(rr.LOLE)),
			strconv.Itoa(rr.Events),
			formatFloat(rr.UnservedEnergy),
			formatFloat(rr.PeakUnserved),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV table to path.
func (r *Result) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
