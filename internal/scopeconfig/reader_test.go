package scopeconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"frameworks/cartographer/internal/scope"
	"frameworks/cartographer/pkg/logging"
)

type row struct {
	typ  scope.Type
	id   string
	path string
}

type valueStoreStub struct {
	rows  map[row]string
	calls int
	err   error
}

func (s *valueStoreStub) Value(ctx context.Context, typ scope.Type, scopeID, path string) (string, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.rows[row{typ, scopeID, path}]
	return v, ok, nil
}

type storeResolverStub struct {
	stores []*scope.Store
}

func (s *storeResolverStub) GetStoreByID(ctx context.Context, id int64) (*scope.Store, error) {
	for _, st := range s.stores {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, nil
}

func (s *storeResolverStub) GetStoreByCode(ctx context.Context, code string) (*scope.Store, error) {
	for _, st := range s.stores {
		if st.Code == code {
			return st, nil
		}
	}
	return nil, nil
}

func newTestReader(rows map[row]string, opts Options) (*Reader, *valueStoreStub) {
	values := &valueStoreStub{rows: rows}
	stores := &storeResolverStub{stores: []*scope.Store{
		{ID: 1, Code: "default", WebsiteID: 1},
		{ID: 2, Code: "fr", WebsiteID: 2},
	}}
	defaults := Defaults{"general/country/default": "US", "general/region/display_all": "1"}
	return NewReader(values, stores, defaults, opts, logging.NewDiscardLogger()), values
}

func TestGetValueScopeChain(t *testing.T) {
	rows := map[row]string{
		{scope.StoreScope, "2", "general/country/default"}:       "FR",
		{scope.WebsiteScope, "1", "general/country/default"}:     "CA",
		{scope.DefaultScope, "0", "general/country/destinations"}: "US,RU",
		{scope.WebsiteScope, "2", "general/locale/code"}:         "fr_FR",
	}
	reader, _ := newTestReader(rows, Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		path   string
		typ    scope.Type
		id     string
		want   string
		wantOK bool
	}{
		{"store row", "general/country/default", scope.StoreScope, "2", "FR", true},
		{"store code", "general/country/default", scope.StoreScope, "fr", "FR", true},
		{"website row", "general/country/default", scope.StoreScope, "1", "CA", true},
		{"website inherited by store", "general/locale/code", scope.StoreScope, "2", "fr_FR", true},
		{"default row", "general/country/destinations", scope.StoreScope, "1", "US,RU", true},
		{"yaml default", "general/country/default", scope.DefaultScope, "", "US", true},
		{"website scope", "general/country/default", scope.WebsiteScope, "2", "US", true},
		{"absent", "general/country/optional_zip_countries", scope.StoreScope, "1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := reader.GetValue(ctx, tt.path, tt.typ, tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("GetValue = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetValueUnknownStore(t *testing.T) {
	reader, _ := newTestReader(nil, Options{})
	_, _, err := reader.GetValue(context.Background(), "general/country/default", scope.StoreScope, "99")
	if !errors.Is(err, ErrUnknownStore) {
		t.Fatalf("expected ErrUnknownStore, got %v", err)
	}
}

func TestGetValuePropagatesStoreErrors(t *testing.T) {
	reader, values := newTestReader(nil, Options{})
	values.err = errors.New("db down")
	_, _, err := reader.GetValue(context.Background(), "general/country/default", scope.DefaultScope, "")
	if !errors.Is(err, values.err) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestIsSetFlag(t *testing.T) {
	tests := []struct {
		value string
		set   bool
		want  bool
	}{
		{"1", true, true},
		{"yes", true, true},
		{"0", true, false},
		{"false", true, false},
		{"FALSE", true, false},
		{"", true, false},
		{"", false, false},
	}
	for _, tt := range tests {
		rows := map[row]string{}
		if tt.set {
			rows[row{scope.StoreScope, "1", "flag/path"}] = tt.value
		}
		reader, _ := newTestReader(rows, Options{})
		got, err := reader.IsSetFlag(context.Background(), "flag/path", scope.StoreScope, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("IsSetFlag(%q, set=%v) = %v, want %v", tt.value, tt.set, got, tt.want)
		}
	}
}

func TestMemoizedReader(t *testing.T) {
	rows := map[row]string{{scope.StoreScope, "1", "general/country/default"}: "DE"}
	reader, values := newTestReader(rows, Options{MemoTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, _, err := reader.GetValue(ctx, "general/country/default", scope.StoreScope, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "DE" {
			t.Fatalf("GetValue = %q, want DE", got)
		}
	}
	if values.calls != 1 {
		t.Fatalf("value store called %d times, want 1", values.calls)
	}

	reader.Invalidate()
	if _, _, err := reader.GetValue(ctx, "general/country/default", scope.StoreScope, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values.calls != 2 {
		t.Fatalf("expected reload after Invalidate, got %d calls", values.calls)
	}
}

func TestLoadDefaults(t *testing.T) {
	d, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	checks := map[string]string{
		"general/country/default":     "US",
		"general/region/display_all":  "1",
		"general/locale/weight_unit":  "lbs",
		"currency/options/base":       "USD",
		"general/region/state_required": "AT,CA,CH,US",
	}
	for path, want := range checks {
		if got := d[path]; got != want {
			t.Fatalf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	doc := []byte(`
general:
  country:
    destinations: [US, RU]
    unset: ~
  region:
    display_all: false
`)
	d, err := ParseDefaults(doc)
	if err != nil {
		t.Fatalf("ParseDefaults: %v", err)
	}
	if got := d["general/country/destinations"]; got != "US,RU" {
		t.Fatalf("destinations = %q, want US,RU", got)
	}
	if _, ok := d["general/country/unset"]; ok {
		t.Fatalf("expected null value to be skipped")
	}
	if got := d["general/region/display_all"]; got != "false" {
		t.Fatalf("display_all = %q, want false", got)
	}
	if want := []string{"general/country/destinations", "general/region/display_all"}; len(d.Paths()) != 2 || d.Paths()[0] != want[0] {
		t.Fatalf("Paths = %v, want %v", d.Paths(), want)
	}
}

func TestLoadDefaultsFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("general:\n  country:\n    default: DE\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := LoadDefaultsFile(path)
	if err != nil {
		t.Fatalf("LoadDefaultsFile: %v", err)
	}
	if d["general/country/default"] != "DE" {
		t.Fatalf("default = %q, want DE", d["general/country/default"])
	}
	if d["currency/options/base"] != "USD" {
		t.Fatalf("expected embedded values to remain")
	}
}
