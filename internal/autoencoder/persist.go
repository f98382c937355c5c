package autoencoder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
)

// Save writes the model to file name in JSON format
func (m *Model) Save(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()
	m.LcmsDiffVersion = outputFormatVersion
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `)
	if err := e.Encode(m); err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	return f.Close()
}

// Load reads a model written by Save. The output directory of the loaded
// model is empty.
func Load(name string) (*Model, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()
	var m Model
	d := json.NewDecoder(f)
	if err := d.Decode(&m); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &m, nil
}

func (m *Model) check() error {
	if m.LcmsDiffVersion != outputFormatVersion {
		return fmt.Errorf("%w: %q", ErrVersion, m.LcmsDiffVersion)
	}
	if err := m.Config.Validate(); err != nil {
		return err
	}
	c := m.Config
	if !m.Encoder.valid() || m.Encoder.In != c.WindowLength || m.Encoder.Out != c.EncodingSize {
		return fmt.Errorf("%w: encoder", ErrCorrupt)
	}
	if !m.Decoder.valid() || m.Decoder.In != c.EncodingSize || m.Decoder.Out != c.WindowLength {
		return fmt.Errorf("%w: decoder", ErrCorrupt)
	}
	for i, centroid := range m.Centroids {
		if len(centroid) != c.EncodingSize {
			return fmt.Errorf("%w: centroid %d", ErrCorrupt, i)
		}
	}
	return nil
}
