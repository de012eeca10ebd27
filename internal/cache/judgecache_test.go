package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPairKey_StableAndOrdered(t *testing.T) {
	k1 := PairKey("Lúa ST25", "Năng suất", "8.5 tấn/ha", "Lúa ST25", "Năng suất", "8.4 tấn/ha")
	k2 := PairKey("Lúa ST25", "Năng suất", "8.5 tấn/ha", "Lúa ST25", "Năng suất", "8.4 tấn/ha")
	if k1 != k2 {
		t.Fatalf("key must be stable")
	}
	swapped := PairKey("Lúa ST25", "Năng suất", "8.4 tấn/ha", "Lúa ST25", "Năng suất", "8.5 tấn/ha")
	if swapped == k1 {
		t.Fatalf("pair key is ordered; swapping operands must change it")
	}
}

func TestJudgeCache_RoundTrip(t *testing.T) {
	c := &JudgeCache{Dir: t.TempDir()}
	key := PairKey("a", "b", "c", "d", "e", "f")

	if _, ok := c.Get(key); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
	c.Save(key, []byte(`{"relation":"SUPPORTED","confidence":1}`))
	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected hit after save")
	}
	if string(got) != `{"relation":"SUPPORTED","confidence":1}` {
		t.Fatalf("payload mismatch: %s", got)
	}
}

func TestJudgeCache_SaveIsIdempotent(t *testing.T) {
	c := &JudgeCache{Dir: t.TempDir()}
	key := PairKey("a", "b", "c", "d", "e", "f")
	c.Save(key, []byte("one"))
	c.Save(key, []byte("one"))
	got, ok := c.Get(key)
	if !ok || string(got) != "one" {
		t.Fatalf("idempotent save broke the entry: %q ok=%v", got, ok)
	}
}

func TestJudgeCache_EmptyFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := &JudgeCache{Dir: dir}
	key := PairKey("a", "b", "c", "d", "e", "f")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatalf("empty file must read as a miss")
	}
}

func TestJudgeCache_NoDirConfigured(t *testing.T) {
	var c *JudgeCache
	if _, ok := c.Get("x"); ok {
		t.Fatalf("nil cache must miss")
	}
	c = &JudgeCache{}
	c.Save("x", []byte("y")) // must not panic
	if _, ok := c.Get("x"); ok {
		t.Fatalf("unconfigured cache must miss")
	}
}

func TestJudgeCache_NoStrayTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := &JudgeCache{Dir: dir}
	key := PairKey("a", "b", "c", "d", "e", "f")
	c.Save(key, []byte("payload"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one cache file, found %d", len(entries))
	}
}
