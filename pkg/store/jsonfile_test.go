package store

import (
	"os"
	"path/filepath"
	"testing"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewFile(path)

	if err := f.Save(testDoc{Name: "x", Count: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got testDoc
	ok, err := f.Load(&got)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load reported missing file")
	}
	if got.Name != "x" || got.Count != 3 {
		t.Errorf("Load = %+v, want {x 3}", got)
	}

	// no tmp file left behind
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("tmp file still present after Save")
	}
}

func TestLoadMissingFile(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "absent.json"))
	var got testDoc
	ok, err := f.Load(&got)
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if ok {
		t.Error("missing file must report ok=false")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got testDoc
	if _, err := NewFile(path).Load(&got); err == nil {
		t.Error("corrupt file must error so callers can fall back to empty state")
	}
}
