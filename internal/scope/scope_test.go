package scope

import "testing"

func TestColumn(t *testing.T) {
	cases := map[Type]string{DefaultScope: "default", WebsiteScope: "websites", StoreScope: "stores", Type("x"): "default"}
	for typ, want := range cases {
		if got := typ.Column(); got != want {
			t.Fatalf("%q.Column() = %q, want %q", typ, got, want)
		}
	}
}

func TestStoreScopeID(t *testing.T) {
	if got := (&Store{ID: 12}).ScopeID(); got != "12" {
		t.Fatalf("ScopeID = %q, want 12", got)
	}
	var s *Store
	if got := s.ScopeID(); got != "" {
		t.Fatalf("nil ScopeID = %q, want empty", got)
	}
}
