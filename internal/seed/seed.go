// Package seed loads the bootstrap journeys file.
package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/unkn0wn-root/journeycas"
)

// File is the on-disk shape: {"journeys": [...]}.
type File struct {
	Journeys []journeycas.Journey `json:"journeys"`
}

// ErrNoFile is returned by Load when path does not exist. journeyd starts
// without seed data in that case.
var ErrNoFile = errors.New("seed: file not found")

// Load reads and decodes path.
func Load(path string) ([]journeycas.Journey, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads one seed document from r. Unknown fields are rejected so a
// misspelled key fails at startup instead of seeding zero values.
func Decode(r io.Reader) ([]journeycas.Journey, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	return file.Journeys, nil
}
