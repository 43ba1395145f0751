package wxvol

import "testing"

func TestHashTblSetGetOverwrite(t *testing.T) {
	h := NewHashTbl[int](4)
	h.Set("a", 1)
	h.Set("b", 2)
	if v, ok := h.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	h.Set("a", 10)
	if v, ok := h.Get("a"); !ok || v != 10 {
		t.Fatalf("Get(a) after overwrite = %d, %v; want 10, true", v, ok)
	}
	if h.Len() != 2 {
		t.Fatalf("Len() = %d; want 2 (overwrite must not grow the count)", h.Len())
	}
}

func TestHashTblMissingKey(t *testing.T) {
	h := NewHashTbl[string](4)
	if _, ok := h.Get("nope"); ok {
		t.Fatal("Get on empty table returned ok=true")
	}
}

func TestHashTblGrowsAtLoadFactorTwo(t *testing.T) {
	h := NewHashTbl[int](2)
	for i := 0; i < 20; i++ {
		h.Set(string(rune('a'+i)), i)
	}
	if h.Len() != 20 {
		t.Fatalf("Len() = %d; want 20", h.Len())
	}
	if len(h.buckets) <= 2 {
		t.Fatalf("bucket count = %d; table should have grown past the initial 2", len(h.buckets))
	}
	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		if v, ok := h.Get(key); !ok || v != i {
			t.Fatalf("Get(%q) after grow = %d, %v; want %d, true", key, v, ok, i)
		}
	}
}

func TestHashTblKeysInsertionOrder(t *testing.T) {
	h := NewHashTbl[int](8)
	order := []string{"zebra", "apple", "mango", "banana"}
	for i, k := range order {
		h.Set(k, i)
	}
	got := h.Keys()
	if len(got) != len(order) {
		t.Fatalf("Keys() len = %d; want %d", len(got), len(order))
	}
	for i, k := range order {
		if got[i] != k {
			t.Fatalf("Keys()[%d] = %q; want %q (insertion order)", i, got[i], k)
		}
	}
}

func TestHashTblDeletePreservesDensePrefix(t *testing.T) {
	h := NewHashTbl[int](8)
	h.Set("one", 1)
	h.Set("two", 2)
	h.Set("three", 3)
	h.Delete("two")
	if _, ok := h.Get("two"); ok {
		t.Fatal("deleted key still present")
	}
	if h.Len() != 2 {
		t.Fatalf("Len() after delete = %d; want 2", h.Len())
	}
	want := []string{"one", "three"}
	got := h.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v; want %v", got, want)
		}
	}
}

func TestHashTblDeleteMissingIsNoop(t *testing.T) {
	h := NewHashTbl[int](4)
	h.Set("a", 1)
	h.Delete("not-there")
	if h.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", h.Len())
	}
}
