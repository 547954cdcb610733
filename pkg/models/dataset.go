// Package models defines the values that move between the lake zones: source
// datasets, result rows and the object keys both zones share.
package models

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/lakeflow/pkg/json"
)

// Dataset names known to the source.
const (
	DatasetProducts = "products"
	DatasetUsers    = "users"
	DatasetCarts    = "carts"
)

// ContentTypeJSON is the content type of every object lakeflow writes
const ContentTypeJSON = "application/json"

// keyTimeLayout is YYYYMMDD_HHMMSS
const keyTimeLayout = "20060102_150405"

// Datasets returns the dataset names in load order.
func Datasets() []string {
	return []string{DatasetProducts, DatasetUsers, DatasetCarts}
}

// IsDataset reports whether name is a known dataset.
func IsDataset(name string) bool {
	for _, d := range Datasets() {
		if d == name {
			return true
		}
	}
	return false
}

// Dataset is one fetched source collection. Elements are kept undecoded so the
// raw zone receives them exactly as the source shaped them.
type Dataset struct {
	Name      string
	Records   []json.RawMessage
	FetchedAt time.Time
}

// Len returns the number of elements.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Encode serializes the collection as a JSON array.
func (d *Dataset) Encode() ([]byte, error) {
	return EncodeCollection(d.Records)
}

// EncodeCollection serializes records as an indented JSON array. A nil or
// empty collection encodes as [].
func EncodeCollection(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	out, err := json.EncodeDocument(records)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return out, nil
}

// ObjectKey returns <name>/<YYYYMMDD_HHMMSS>.json for t.
func ObjectKey(name string, t time.Time) string {
	return fmt.Sprintf("%s/%s.json", name, t.Format(keyTimeLayout))
}
