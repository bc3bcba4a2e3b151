package warts

import (
	"bytes"
	"encoding/binary"
)

// wire assembles big-endian test captures.
type wire struct {
	buf bytes.Buffer
}

func (w *wire) u8(v ...uint8) *wire {
	w.buf.Write(v)
	return w
}

func (w *wire) u16(v uint16) *wire {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *wire) u32(v uint32) *wire {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *wire) str(s string) *wire {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return w
}

func (w *wire) raw(p []byte) *wire {
	w.buf.Write(p)
	return w
}

// addr writes an embedded address.
func (w *wire) addr(family Family, raw ...byte) *wire {
	return w.u8(uint8(len(raw)), uint8(family)).raw(raw)
}

// ref writes a reference to a previously embedded address.
func (w *wire) ref(id uint32) *wire {
	return w.u8(0).u32(id)
}

// params writes the flag bytes for the given 0-based positions, the parameter length
// and the already encoded field values.
func (w *wire) params(fields []byte, positions ...int) *wire {
	w.buf.Write(flagBytes(positions...))
	if len(positions) > 0 {
		w.u16(uint16(len(fields)))
		w.buf.Write(fields)
	}
	return w
}

func (w *wire) object(typ ObjectType, body []byte) *wire {
	return w.u16(Magic).u16(uint16(typ)).u32(uint32(len(body))).raw(body)
}

func (w *wire) bytes() []byte { return w.buf.Bytes() }

func flagBytes(positions ...int) []byte {
	n := 1
	for _, p := range positions {
		if p/7+1 > n {
			n = p/7 + 1
		}
	}
	out := make([]byte, n)
	for _, p := range positions {
		out[p/7] |= 1 << (p % 7)
	}
	for i := 0; i < n-1; i++ {
		out[i] |= 0x80
	}
	return out
}

func newTestState(p []byte, opts Options) *state {
	return &state{
		r:     newReader(bytes.NewReader(p), 0),
		addrs: NewAddressTable(),
		opts:  &opts,
	}
}
