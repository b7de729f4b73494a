package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one entity as delivered by a snapshot producer.
//
// On the wire a record is a flat JSON object: "name", "logo" and "labels"
// are reserved, every other key holding an array of numbers is a series.
// A nested "series" object is accepted as well:
//
//	{"name": "Google", "logo": "...", "access": [3.2, 3.3], "labels": ["", "Now"]}
//	{"name": "Google", "series": {"access": [3.2, 3.3]}}
type Record struct {
	Name   string
	Logo   string
	Series map[string][]float64
	Labels []string
}

// reserved keys never interpreted as series.
var reserved = map[string]struct{}{
	"name":   {},
	"logo":   {},
	"labels": {},
	"series": {},
	"chart":  {},
}

// IsReserved reports whether key is a record field that can never name a
// series on the wire.
func IsReserved(key string) bool {
	_, ok := reserved[key]
	return ok
}

// UnmarshalJSON implements json.Unmarshaler for the flat record form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{Series: make(map[string][]float64)}

	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &r.Name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if v, ok := raw["logo"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &r.Logo); err != nil {
			return fmt.Errorf("logo: %w", err)
		}
	}
	if v, ok := raw["labels"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &r.Labels); err != nil {
			return fmt.Errorf("labels: %w", err)
		}
	}
	if v, ok := raw["series"]; ok && string(v) != "null" {
		var nested map[string][]float64
		if err := json.Unmarshal(v, &nested); err != nil {
			return fmt.Errorf("series: %w", err)
		}
		for k, s := range nested {
			r.Series[k] = s
		}
	}

	for k, v := range raw {
		if _, skip := reserved[k]; skip || string(v) == "null" {
			continue
		}
		var s []float64
		if err := json.Unmarshal(v, &s); err != nil {
			// non-numeric extras are ignored, they belong to the producer
			continue
		}
		r.Series[k] = s
	}
	return nil
}

// MarshalJSON implements json.Marshaler using the flat record form.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Series)+3)
	for k, s := range r.Series {
		if s == nil {
			s = []float64{}
		}
		out[k] = s
	}
	out["name"] = r.Name
	out["logo"] = r.Logo
	if r.Labels != nil {
		out["labels"] = r.Labels
	}
	return json.Marshal(out)
}

// Keys returns the record's series keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Series))
	for k := range r.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	series := make(map[string][]float64, len(r.Series))
	for k, v := range r.Series {
		series[k] = append([]float64(nil), v...)
	}
	var labels []string
	if r.Labels != nil {
		labels = append([]string(nil), r.Labels...)
	}
	return Record{
		Name:   r.Name,
		Logo:   r.Logo,
		Series: series,
		Labels: labels,
	}
}
