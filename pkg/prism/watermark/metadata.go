package watermark

import (
	"sort"

	"github.com/prismdata/prism-go/pkg/prism"
)

// FromMetadata turns numeric file metadata into one-attribute records, one
// per field, ordered by field name.
func FromMetadata(meta map[string]int64) []Record {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	records := make([]Record, len(keys))
	for i, k := range keys {
		records[i] = Record{Key: k, Attrs: []int64{meta[k]}}
	}
	return records
}

// ToMetadata is the inverse of FromMetadata.
func ToMetadata(records []Record) (map[string]int64, error) {
	meta := make(map[string]int64, len(records))
	for _, r := range records {
		if len(r.Attrs) != 1 {
			return nil, prism.Errorf("watermark.ToMetadata", "%w: field %q has %d values", prism.ErrInvalidParameter, r.Key, len(r.Attrs))
		}
		if _, dup := meta[r.Key]; dup {
			return nil, prism.Errorf("watermark.ToMetadata", "%w: duplicate field %q", prism.ErrInvalidParameter, r.Key)
		}
		meta[r.Key] = r.Attrs[0]
	}
	return meta, nil
}
