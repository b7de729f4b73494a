package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func series(access ...float64) map[string][]float64 {
	return map[string][]float64{"access": access}
}

func TestNew(t *testing.T) {
	st := New()
	if st == nil {
		t.Fatal("New() = nil")
	}

	// should start empty
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
	if len(st.All()) != 0 {
		t.Errorf("All() = %v items, want 0", len(st.All()))
	}
}

func TestStore_UpsertInserts(t *testing.T) {
	st := New()

	inserted := st.Upsert("Google", series(3.2), []string{"Now"}, "https://logo/google")
	if !inserted {
		t.Error("Upsert() inserted = false, want true")
	}

	e, ok := st.Get("Google")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if e.Logo != "https://logo/google" {
		t.Errorf("Logo = %q, want %q", e.Logo, "https://logo/google")
	}
	if got, _ := e.Last("access"); got != 3.2 {
		t.Errorf("Last(access) = %v, want 3.2", got)
	}
}

func TestStore_UpsertKeepsLogoWhenEmpty(t *testing.T) {
	st := New()
	st.Upsert("Google", series(1), nil, "logo-a")

	inserted := st.Upsert("Google", series(1, 2), nil, "")
	if inserted {
		t.Error("Upsert() inserted = true for existing entity")
	}

	e, _ := st.Get("Google")
	if e.Logo != "logo-a" {
		t.Errorf("Logo = %q, want %q", e.Logo, "logo-a")
	}
	if e.Len() != 2 {
		t.Errorf("Len() = %d, want 2", e.Len())
	}
}

func TestStore_ReplaceOverwritesLogo(t *testing.T) {
	st := New()
	st.Replace("Google", series(1), nil, "logo-a")
	st.Replace("Google", series(2), nil, "")

	e, _ := st.Get("Google")
	if e.Logo != "" {
		t.Errorf("Logo = %q, want empty", e.Logo)
	}
}

func TestStore_UpsertPreservesHandleAndPosition(t *testing.T) {
	st := New()
	st.Upsert("a", series(1), nil, "")
	st.Upsert("b", series(2), nil, "")
	st.SetHandle("a", "chart-a")

	st.Upsert("a", series(9), nil, "")

	if diff := cmp.Diff([]string{"a", "b"}, st.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	e, _ := st.Get("a")
	if e.Handle != "chart-a" {
		t.Errorf("Handle = %v, want chart-a", e.Handle)
	}
}

func TestStore_Remove(t *testing.T) {
	st := New()
	st.Upsert("a", series(1), nil, "")
	st.Upsert("b", series(2), nil, "")
	st.Upsert("c", series(3), nil, "")
	st.SetHandle("b", 42)

	handle, ok := st.Remove("b")
	if !ok {
		t.Fatal("Remove() ok = false, want true")
	}
	if handle != 42 {
		t.Errorf("Remove() handle = %v, want 42", handle)
	}
	if _, ok := st.Get("b"); ok {
		t.Error("Get() found removed entity")
	}
	if diff := cmp.Diff([]string{"a", "c"}, st.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_RemoveUnknownIsNoop(t *testing.T) {
	st := New()
	st.Upsert("a", series(1), nil, "")

	handle, ok := st.Remove("missing")
	if ok || handle != nil {
		t.Errorf("Remove(missing) = (%v, %v), want (nil, false)", handle, ok)
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestStore_NamesAreCaseSensitive(t *testing.T) {
	st := New()
	st.Upsert("github", series(1), nil, "")
	st.Upsert("GitHub", series(2), nil, "")

	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}
}

func TestStore_SetHandleUnknown(t *testing.T) {
	st := New()
	if st.SetHandle("missing", 1) {
		t.Error("SetHandle(missing) = true, want false")
	}
}

func TestEntity_LastEmptySeries(t *testing.T) {
	e := Entity{Series: map[string][]float64{"access": {}}}
	if _, ok := e.Last("access"); ok {
		t.Error("Last() ok = true for empty series")
	}
	if _, ok := e.Last("search"); ok {
		t.Error("Last() ok = true for missing series")
	}
}

func TestEntity_CloneIsDeep(t *testing.T) {
	e := Entity{
		Name:   "a",
		Series: map[string][]float64{"access": {1, 2}},
		Labels: []string{"", "Now"},
	}
	cp := e.Clone()
	cp.Series["access"][0] = 99
	cp.Labels[1] = "changed"

	if e.Series["access"][0] != 1 {
		t.Error("Clone() shares series backing array")
	}
	if e.Labels[1] != "Now" {
		t.Error("Clone() shares labels backing array")
	}
}
