package wxvol

// HashTbl is an open-chaining, name-keyed table, generic over the stored
// value type. It is the Go stand-in for the bucket-and-chain hash table in
// original_source/src/hash.c: a fixed bucket array with linked-list chains
// on collision, and an explicit grow-and-rehash step (Hash_Adj in the
// original) instead of the fixed 512-bucket array with linear probing the
// C volume and DORADE-sweep structures used. It backs both the per-volume
// Sigmet field index and the per-sweep DORADE parameter index (spec §4.1).
type HashTbl[V any] struct {
	buckets [][]hashEntry[V]
	order   []string // insertion order, so parameter/field iteration is stable
	n       int
}

type hashEntry[V any] struct {
	key string
	val V
}

const hashPoly = 31

func hashKey(k string, n int) int {
	h := uint32(0)
	for i := 0; i < len(k); i++ {
		h = hashPoly*h + uint32(k[i])
	}
	return int(h % uint32(n))
}

// NewHashTbl constructs a table with an initial bucket count. nBuckets <= 0
// is treated as 1.
func NewHashTbl[V any](nBuckets int) *HashTbl[V] {
	if nBuckets <= 0 {
		nBuckets = 1
	}
	return &HashTbl[V]{buckets: make([][]hashEntry[V], nBuckets)}
}

// Set installs or overwrites key. The table doubles and rehashes once the
// load factor (entries per bucket) exceeds 2, mirroring Hash_Adj.
func (t *HashTbl[V]) Set(key string, val V) {
	b := hashKey(key, len(t.buckets))
	for i := range t.buckets[b] {
		if t.buckets[b][i].key == key {
			t.buckets[b][i].val = val
			return
		}
	}
	t.buckets[b] = append(t.buckets[b], hashEntry[V]{key: key, val: val})
	t.order = append(t.order, key)
	t.n++
	if t.n > 2*len(t.buckets) {
		t.grow(2 * len(t.buckets))
	}
}

// Get reports the value installed under key, if any.
func (t *HashTbl[V]) Get(key string) (V, bool) {
	var zero V
	if len(t.buckets) == 0 {
		return zero, false
	}
	b := hashKey(key, len(t.buckets))
	for _, e := range t.buckets[b] {
		if e.key == key {
			return e.val, true
		}
	}
	return zero, false
}

// Delete removes key, if present, and slides the insertion-order record
// down so Keys() retains a dense sequence (spec §4.5 delete_field requires
// the remaining fields to keep a dense prefix).
func (t *HashTbl[V]) Delete(key string) {
	b := hashKey(key, len(t.buckets))
	for i, e := range t.buckets[b] {
		if e.key == key {
			t.buckets[b] = append(t.buckets[b][:i], t.buckets[b][i+1:]...)
			t.n--
			break
		}
	}
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of installed entries.
func (t *HashTbl[V]) Len() int { return t.n }

// Keys returns installed keys in insertion order.
func (t *HashTbl[V]) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *HashTbl[V]) grow(n int) {
	nb := make([][]hashEntry[V], n)
	for _, bucket := range t.buckets {
		for _, e := range bucket {
			b := hashKey(e.key, n)
			nb[b] = append(nb[b], e)
		}
	}
	t.buckets = nb
}
