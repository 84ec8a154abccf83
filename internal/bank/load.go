package bank

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// document is the on-wire shape of an analysis result.
type document struct {
	ID     string  `json:"id"`
	Role   string  `json:"role"`
	Slices []Slice `json:"slices"`
	Aggregates
}

// Decode reads one analysis document from r and validates it into a Bank.
func Decode(r io.Reader) (*Bank, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode bank document: %w", err)
	}
	return New(doc.ID, ParseRole(doc.Role), doc.Slices, doc.Aggregates)
}

// Load reads an analysis document from a JSON file.
func Load(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank file: %w", err)
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load bank %s: %w", path, err)
	}
	return b, nil
}
