package warts

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// reader performs the fixed-width big-endian reads every warts field is built from.
// It never seeks; off counts the bytes consumed so far relative to the stream start.
type reader struct {
	r   io.Reader
	br  io.ByteReader
	off int64
	buf [4]byte
}

func newReader(r io.Reader, off int64) *reader {
	rd := &reader{r: r, off: off}
	rd.br, _ = r.(io.ByteReader)
	return rd
}

// read fills p completely or fails with ErrTruncatedInput.
func (r *reader) read(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedInput, len(p), r.off-int64(n), n)
		}
		return err
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.read(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.read(r.buf[:2]); err != nil {
		return 0, err
	}
	return uint16(r.buf[0])<<8 | uint16(r.buf[1]), nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.read(r.buf[:4]); err != nil {
		return 0, err
	}
	return uint32(r.buf[0])<<24 | uint32(r.buf[1])<<16 | uint32(r.buf[2])<<8 | uint32(r.buf[3]), nil
}

// bytes returns a fresh slice of n raw bytes.
func (r *reader) bytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if err := r.read(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *reader) skip(n int64) error {
	m, err := io.CopyN(io.Discard, r.r, n)
	r.off += m
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: cannot skip %d bytes at offset %d", ErrTruncatedInput, n, r.off-m)
		}
		return err
	}
	return nil
}

// cstring reads a NUL terminated string. The terminator is consumed but not returned.
func (r *reader) cstring() (string, error) {
	start := r.off
	var s []byte
	for {
		var (
			b   byte
			err error
		)
		if r.br != nil {
			b, err = r.br.ReadByte()
			if err == nil {
				r.off++
			}
		} else {
			b, err = r.u8()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTruncatedInput) {
				return "", fmt.Errorf("%w: unterminated string at offset %d", ErrTruncatedInput, start)
			}
			return "", err
		}
		if b == 0 {
			return string(s), nil
		}
		s = append(s, b)
	}
}

func (r *reader) timeval() (Timeval, error) {
	sec, err := r.u32()
	if err != nil {
		return Timeval{}, err
	}
	usec, err := r.u32()
	if err != nil {
		return Timeval{}, err
	}
	return Timeval{Sec: sec, Usec: usec}, nil
}

// Timeval is a timestamp stored as seconds and microseconds.
type Timeval struct {
	Sec  uint32
	Usec uint32
}

// Seconds returns the timestamp as fractional seconds since the epoch.
func (t Timeval) Seconds() float64 {
	return float64(t.Sec) + float64(t.Usec)/1_000_000
}

func (t Timeval) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Usec)*int64(time.Microsecond)).UTC()
}

func (t Timeval) IsZero() bool { return t.Sec == 0 && t.Usec == 0 }

func (t Timeval) String() string {
	return fmt.Sprintf("%d.%06d", t.Sec, t.Usec)
}
