package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCollectors(t *testing.T) {
	r := NewRun()

	r.YearDone(true, 2*time.Second)
	r.YearDone(true, time.Second)
	r.YearDone(false, time.Second)
	r.Warning("missing_load")
	r.Warning("missing_load")
	r.Reliability(2030, "A", 3)
	r.Reliability(2030, "A", 4)
	r.Unserved(2030, 12.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.YearsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.YearsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.BuildWarnings.WithLabelValues("missing_load")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.LOLE.WithLabelValues("2030", "A")))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.UnservedEnergy.WithLabelValues("2030")))
}

func TestWriteFile(t *testing.T) {
	r := NewRun()
	r.YearDone(true, time.Second)
	r.Reliability(2050, "SYSTEM", 1.5)

	path := filepath.Join(t.TempDir(), "powerlole.prom")
	require.NoError(t, r.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `powerlole_years_total{status="ok"} 1`), text)
	assert.True(t, strings.Contains(text, `powerlole_lole{region="SYSTEM",year="2050"} 1.5`), text)
	assert.True(t, strings.Contains(text, "powerlole_year_duration_seconds_count 1"), text)
}
