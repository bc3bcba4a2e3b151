// Package file opens capture files, transparently decompressing them.
package file

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression names the container a capture was stored in.
type Compression string

const (
	None  Compression = "none"
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
	Zstd  Compression = "zstd"
)

var magics = []struct {
	prefix []byte
	kind   Compression
}{
	{[]byte("BZh"), Bzip2},
	{[]byte{0x1f, 0x8b}, Gzip},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, Zstd},
}

// Source is an open capture. Reads return the decompressed warts stream.
type Source struct {
	path        string
	f           *os.File
	r           io.Reader
	closer      func() error
	compression Compression
}

// Open opens path, choosing a decompressor from the leading magic bytes.
// "-" reads standard input.
func Open(path string) (*Source, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
		}
	}
	s, err := NewSource(path, f)
	if err != nil {
		if f != os.Stdin {
			f.Close()
		}
		return nil, err
	}
	s.f = f
	return s, nil
}

// NewSource wraps an already open stream. Closing the Source does not close r.
func NewSource(name string, r io.Reader) (*Source, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read capture %s: %w", name, err)
	}

	s := &Source{path: name, r: br, compression: None}
	for _, m := range magics {
		if bytes.HasPrefix(head, m.prefix) {
			s.compression = m.kind
			break
		}
	}

	switch s.compression {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip capture %s: %w", name, err)
		}
		s.r, s.closer = bufio.NewReader(zr), zr.Close
	case Bzip2:
		s.r = bufio.NewReader(bzip2.NewReader(br))
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd capture %s: %w", name, err)
		}
		s.r = bufio.NewReader(zr)
		s.closer = func() error { zr.Close(); return nil }
	}
	return s, nil
}

func (s *Source) Read(p []byte) (int, error) { return s.r.Read(p) }

// ReadByte lets the decoder use the source without another buffering layer.
func (s *Source) ReadByte() (byte, error) {
	return s.r.(io.ByteReader).ReadByte()
}

func (s *Source) Path() string { return s.path }

func (s *Source) Compression() Compression { return s.compression }

func (s *Source) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer()
	}
	if s.f != nil && s.f != os.Stdin {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
