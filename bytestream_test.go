package wxvol

import (
	"bytes"
	"testing"
)

// TestByteSwapRoundTrip exercises the endian round-trip property: swapping
// a value twice returns the original, and a single swap actually reverses
// byte order (it is not a no-op).
func TestByteSwapRoundTrip(t *testing.T) {
	v16 := uint16(0x1234)
	if got := byteSwap16(byteSwap16(v16)); got != v16 {
		t.Fatalf("byteSwap16 twice = %#04x; want %#04x", got, v16)
	}
	if got := byteSwap16(v16); got == v16 {
		t.Fatalf("byteSwap16(%#04x) = %#04x; swap should change the value", v16, got)
	}
	if got := byteSwap16(v16); got != 0x3412 {
		t.Fatalf("byteSwap16(%#04x) = %#04x; want 0x3412", v16, got)
	}

	v32 := uint32(0x12345678)
	if got := byteSwap32(byteSwap32(v32)); got != v32 {
		t.Fatalf("byteSwap32 twice = %#08x; want %#08x", got, v32)
	}
	if got := byteSwap32(v32); got != 0x78563412 {
		t.Fatalf("byteSwap32(%#08x) = %#08x; want 0x78563412", v32, got)
	}
}

func TestByteStreamReadWriteLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	w := NewByteStreamWriter(&buf)
	if err := w.WriteI32(-7); err != nil {
		t.Fatalf("WriteI32: %v", err)
	}
	if err := w.WriteF32(2.5); err != nil {
		t.Fatalf("WriteF32: %v", err)
	}

	r := NewByteStream(bytes.NewReader(buf.Bytes()))
	i, err := r.ReadI32()
	if err != nil || i != -7 {
		t.Fatalf("ReadI32() = %d, %v; want -7, nil", i, err)
	}
	f, err := r.ReadF32()
	if err != nil || f != 2.5 {
		t.Fatalf("ReadF32() = %v, %v; want 2.5, nil", f, err)
	}
}

func TestByteStreamSwapReadsOppositeOrder(t *testing.T) {
	// 0x02,0x01 read little-endian is 0x0102; the same two bytes read with
	// swap set true must come back big-endian, 0x0201.
	raw := []byte{0x02, 0x01}
	native := NewByteStream(bytes.NewReader(raw))
	if v, _ := native.ReadU16(); v != 0x0102 {
		t.Fatalf("native ReadU16() = %#04x; want 0x0102", v)
	}
	swapped := NewByteStream(bytes.NewReader(raw))
	swapped.SetSwap(true)
	if v, _ := swapped.ReadU16(); v != 0x0201 {
		t.Fatalf("swapped ReadU16() = %#04x; want 0x0201", v)
	}
	if !swapped.Swap() {
		t.Fatal("Swap() = false after SetSwap(true)")
	}
}

func TestByteStreamReadBytesShortReturnsErr(t *testing.T) {
	r := NewByteStream(bytes.NewReader([]byte{1, 2}))
	if _, err := r.ReadBytes(4); err == nil {
		t.Fatal("ReadBytes(4) on a 2-byte source succeeded; want an error")
	}
}
