package network

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the serialized layout changes.
const formatVersion = 1

type envelope struct {
	Version int      `msgpack:"version"`
	Network *Network `msgpack:"network"`
}

// Encode writes n to w in the msgpack snapshot format.
func Encode(w io.Writer, n *Network) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(envelope{Version: formatVersion, Network: n})
}

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	var env envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding network snapshot: %w", err)
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported network snapshot version %d", env.Version)
	}
	if env.Network == nil {
		return nil, fmt.Errorf("network snapshot is empty")
	}
	return env.Network, nil
}

// WriteFile saves n to path, replacing any existing file.
func WriteFile(path string, n *Network) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, n); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a network saved with WriteFile.
func ReadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
