package models

import (
	"sort"
	"time"
)

type Metric struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Step      int64     `json:"step"`
}

// Record is one logged step: field name to value. Values are float64,
// Image or []Image.
type Record map[string]any

// Merge copies the fields of other into r, overwriting on conflict.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
