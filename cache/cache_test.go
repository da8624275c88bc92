package cache

import (
	"testing"
	"time"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.Set("k1", "v1", time.Second)
	v, found := c.Get("k1")
	if !found {
		t.Fatal("expected to find k1")
	}
	if v != "v1" {
		t.Errorf("expected v1, got %s", v)
	}

	if _, found := c.Get("missing"); found {
		t.Error("expected miss for missing key")
	}
}

func TestLRUCache_Expiration(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.Set("expiring", "v", 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	if _, found := c.Get("expiring"); found {
		t.Error("expected entry to expire")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](2, time.Minute)
	defer c.Destroy()

	c.Set("a", "1", time.Hour)
	c.Set("b", "2", time.Hour)
	// touch "a" so "b" becomes least-recently-used
	c.Get("a")
	c.Set("c", "3", time.Hour)

	if _, found := c.Get("b"); found {
		t.Error("expected b to be evicted as least-recently-used")
	}
	if _, found := c.Get("a"); !found {
		t.Error("expected a to remain after touch")
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected newly inserted c to remain")
	}
	if size := c.Stats().Size; size > 2 {
		t.Errorf("expected size <= 2, got %d", size)
	}
}

func TestLRUCache_InvalidateByTag(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.SetWithTags("a", "1", time.Hour, []string{"session:1"})
	c.SetWithTags("b", "2", time.Hour, []string{"session:1"})
	c.SetWithTags("c", "3", time.Hour, []string{"session:2"})

	n := c.InvalidateByTag("session:1")
	if n != 2 {
		t.Errorf("expected 2 invalidated, got %d", n)
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected untagged-match entry to survive")
	}
}

func TestLRUCache_InvalidateOlderThan(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.Set("old", "1", time.Hour)
	time.Sleep(20 * time.Millisecond)
	c.Set("new", "2", time.Hour)

	n := c.InvalidateOlderThan(10 * time.Millisecond)
	if n != 1 {
		t.Errorf("expected 1 invalidated, got %d", n)
	}
	if _, found := c.Get("new"); !found {
		t.Error("expected recent entry to survive")
	}
}

func TestLRUCache_ResizeEvicts(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.Set("a", "1", time.Hour)
	c.Set("b", "2", time.Hour)
	c.Set("c", "3", time.Hour)

	c.Resize(1)
	if size := c.Stats().Size; size > 1 {
		t.Errorf("expected size <= 1 after resize, got %d", size)
	}
}

func TestLRUCache_StatsHitRate(t *testing.T) {
	c := New[string](10, time.Minute)
	defer c.Destroy()

	c.Set("k", "v", time.Hour)
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit 1 miss, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore[string](dir)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}

	c := New[string](10, time.Minute)
	defer c.Destroy()
	c.Set("k1", "v1", time.Hour)
	c.Set("k2", "v2", time.Hour)

	if err := store.Save(c.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}

	restored := New[string](10, time.Minute)
	defer restored.Destroy()
	restored.Restore(loaded)
	if v, found := restored.Get("k1"); !found || v != "v1" {
		t.Errorf("expected restored k1=v1, got %v found=%v", v, found)
	}
}

func TestSnapshotStore_SkipsExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore[string](dir)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}

	expired := map[string]SnapshotEntry[string]{
		"gone": {Value: "v", ExpiresAt: time.Now().Add(-time.Hour)},
	}
	if err := store.Save(expired); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored := New[string](10, time.Minute)
	defer restored.Destroy()
	restored.Restore(loaded)
	if _, found := restored.Get("gone"); found {
		t.Error("expected already-expired snapshot entry to be skipped on restore")
	}
}

func TestCodec_CompressAndEncryptRoundTrip(t *testing.T) {
	codec := NewCodec(CodecOptions{CompressMinSize: 4, EncryptionKey: "a-test-passphrase"})

	payload := []byte(`{"hello":"world","repeat":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)
	encoded, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Errorf("round trip mismatch: got %q", decoded)
	}
}

func TestCodec_NoEnvelopeWhenDisabled(t *testing.T) {
	codec := NewCodec(CodecOptions{})
	payload := []byte("plain")
	encoded, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(encoded) != string(payload) {
		t.Error("expected passthrough encoding when compression/encryption disabled")
	}
}
