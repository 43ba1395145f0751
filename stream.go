package wxvol

import "io"

// Stream is satisfied equally by *os.File and *bytes.Reader. The Sigmet and
// DORADE readers are written against Stream rather than *os.File so that
// tests can drive them against in-memory fixtures without touching the
// filesystem, and so a caller can wrap an arbitrary decompressed byte
// source (gunzip/bunzip2 pipe) as long as it can Read and Seek.
type Stream interface {
	io.Reader
	io.Seeker
}

// Tell reports the current position within stream.
func Tell(s Stream) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}
