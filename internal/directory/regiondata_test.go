package directory

import (
	"encoding/json"
	"testing"
)

func TestRegionDataMarshalKeepsOrder(t *testing.T) {
	data := NewRegionData(RegionConfig{ShowAllRegions: true, RegionsRequired: []string{"US", "AT"}})
	data.Add(Region{ID: "57", CountryID: "US", Code: "TX", Name: "Texas"})
	data.Add(Region{ID: "12", CountryID: "US", Code: "CA", Name: "California"})
	data.Add(Region{ID: "95", CountryID: "AT", Code: "WI", Name: "Wien"})

	got, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"config":{"show_all_regions":true,"regions_required":["US","AT"]},` +
		`"US":{"57":{"code":"TX","name":"Texas"},"12":{"code":"CA","name":"California"}},` +
		`"AT":{"95":{"code":"WI","name":"Wien"}}}`
	if string(got) != want {
		t.Fatalf("json = %s\nwant   %s", got, want)
	}
}

func TestRegionDataEmptyEncodesConfigOnly(t *testing.T) {
	out, err := StdEncoder{}.Encode(NewRegionData(RegionConfig{}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"config":{"show_all_regions":false,"regions_required":[]}}`
	if out != want {
		t.Fatalf("Encode = %s, want %s", out, want)
	}
}

func TestRegionDataDuplicateRegionOverwrites(t *testing.T) {
	data := NewRegionData(RegionConfig{})
	data.Add(Region{ID: "1", CountryID: "US", Code: "AL", Name: "Alabama"})
	data.Add(Region{ID: "1", CountryID: "US", Code: "AL", Name: "Alabama (new)"})

	c := data.Country("US")
	if c == nil || len(c.RegionIDs) != 1 {
		t.Fatalf("expected a single region, got %+v", c)
	}
	if c.Regions["1"].Name != "Alabama (new)" {
		t.Fatalf("name = %q, want overwritten value", c.Regions["1"].Name)
	}
}

func TestStdEncoderDoesNotEscapeHTML(t *testing.T) {
	data := NewRegionData(RegionConfig{})
	data.Add(Region{ID: "1", CountryID: "GB", Code: "T&W", Name: "Tyne & Wear"})

	out, err := StdEncoder{}.Encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"config":{"show_all_regions":false,"regions_required":[]},"GB":{"1":{"code":"T&W","name":"Tyne & Wear"}}}`
	if out != want {
		t.Fatalf("Encode = %s, want %s", out, want)
	}
}

func TestRegionDataDropsReservedConfigCountry(t *testing.T) {
	data := NewRegionData(RegionConfig{})
	data.Add(Region{ID: "9", CountryID: RegionConfigKey, Code: "X", Name: "X"})
	data.Add(Region{ID: "1", CountryID: "US", Code: "AL", Name: "Alabama"})

	if data.Country(RegionConfigKey) != nil || len(data.Countries) != 1 {
		t.Fatalf("countries = %+v, want only US", data.Countries)
	}
	out, err := StdEncoder{}.Encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"config":{"show_all_regions":false,"regions_required":[]},"US":{"1":{"code":"AL","name":"Alabama"}}}`
	if out != want {
		t.Fatalf("Encode = %s, want %s", out, want)
	}
}
