package directory

import (
	"bytes"
	"encoding/json"
)

// RegionEntry is the {code, name} pair shown for a region.
type RegionEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RegionConfig is the "config" entry of the region map.
type RegionConfig struct {
	ShowAllRegions  bool     `json:"show_all_regions"`
	RegionsRequired []string `json:"regions_required"`
}

// CountryRegions holds one country's regions in row order.
type CountryRegions struct {
	CountryID string
	RegionIDs []string
	Regions   map[string]RegionEntry
}

// RegionData is the region map: the config entry followed by countries in
// the order their first region arrived. It encodes as a JSON object with keys
// in that order.
type RegionData struct {
	Config    RegionConfig
	Countries []*CountryRegions
}

// NewRegionData returns an empty map carrying cfg.
func NewRegionData(cfg RegionConfig) *RegionData {
	if cfg.RegionsRequired == nil {
		cfg.RegionsRequired = []string{}
	}
	return &RegionData{Config: cfg}
}

// RegionConfigKey is the reserved top-level key of the encoded map.
const RegionConfigKey = "config"

// Add places r under its country. A repeated region id overwrites the entry
// in place. Rows whose country id is the reserved "config" key are dropped.
func (d *RegionData) Add(r Region) {
	if r.CountryID == RegionConfigKey {
		return
	}
	c := d.Country(r.CountryID)
	if c == nil {
		c = &CountryRegions{CountryID: r.CountryID, Regions: make(map[string]RegionEntry)}
		d.Countries = append(d.Countries, c)
	}
	if _, seen := c.Regions[r.ID]; !seen {
		c.RegionIDs = append(c.RegionIDs, r.ID)
	}
	c.Regions[r.ID] = RegionEntry{Code: r.Code, Name: r.Name}
}

// Country returns the regions recorded for countryID, or nil.
func (d *RegionData) Country(countryID string) *CountryRegions {
	for _, c := range d.Countries {
		if c.CountryID == countryID {
			return c
		}
	}
	return nil
}

// MarshalJSON writes {"config": ..., "<country>": {"<region>": {...}}, ...}.
func (d *RegionData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeKey(&buf, RegionConfigKey); err != nil {
		return nil, err
	}
	cfg, err := marshal(d.Config)
	if err != nil {
		return nil, err
	}
	buf.Write(cfg)

	for _, c := range d.Countries {
		buf.WriteByte(',')
		if err := writeKey(&buf, c.CountryID); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for i, id := range c.RegionIDs {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, id); err != nil {
				return nil, err
			}
			entry, err := marshal(c.Regions[id])
			if err != nil {
				return nil, err
			}
			buf.Write(entry)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// StdEncoder is the JSONEncoder backed by encoding/json. HTML escaping is
// off since the output is embedded verbatim into scripts.
type StdEncoder struct{}

func (StdEncoder) Encode(v any) (string, error) {
	b, err := marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
