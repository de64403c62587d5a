package network

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	res, err := NewBuilder(testSettings(), nil).Build(context.Background(), 2050, scenarioProvider())
	require.NoError(t, err)

	n := res.Network
	ens, _ := n.ENS("A")
	ens.Dispatch = []float64{0, 0, 12.5, 0}
	n.Status = Optimal
	n.Solver = "meritorder"

	path := filepath.Join(t.TempDir(), "network_2050.msgpack")
	require.NoError(t, WriteFile(path, n))

	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, n.Year, got.Year)
	assert.Equal(t, Optimal, got.Status)
	assert.Len(t, got.Snapshots, len(n.Snapshots))
	assert.True(t, got.Snapshots[0].Time.Equal(n.Snapshots[0].Time))

	link, ok := got.Link("A-B")
	require.True(t, ok)
	assert.True(t, link.MaxCapacity.IsUnbounded())

	gotENS, ok := got.ENS("A")
	require.True(t, ok)
	assert.True(t, gotENS.Capacity.IsUnbounded())
	assert.Equal(t, []float64{0, 0, 12.5, 0}, gotENS.Dispatch)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xc1, 0x00}))
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	res, err := NewBuilder(testSettings(), nil).Build(context.Background(), 2020, scenarioProvider())
	require.NoError(t, err)

	orig := res.Network
	c := orig.Clone()
	c.Loads[0].Demand[0] = -1
	c.Generators[0].Dispatch = []float64{1}

	assert.NotEqual(t, -1.0, orig.Loads[0].Demand[0])
	assert.Nil(t, orig.Generators[0].Dispatch)
}

func TestBoundString(t *testing.T) {
	assert.Equal(t, "1500", Finite(1500).String())
	assert.Equal(t, "unbounded", Unbounded().String())
	assert.Equal(t, "none", Absent().String())
}
