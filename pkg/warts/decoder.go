package warts

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic opens every object header.
	Magic uint16 = 0x1205

	headerLen = 8

	// DefaultMaxObjectSize bounds the body of a single object.
	DefaultMaxObjectSize int64 = 64 << 20
)

// ObjectType is the type code carried in an object header.
type ObjectType uint16

const (
	ObjectList       ObjectType = 0x01
	ObjectCycleStart ObjectType = 0x02
	ObjectCycleDef   ObjectType = 0x03
	ObjectCycleStop  ObjectType = 0x04
	ObjectAddress    ObjectType = 0x05
	ObjectTrace      ObjectType = 0x06
	ObjectPing       ObjectType = 0x07
)

func (t ObjectType) String() string {
	switch t {
	case ObjectList:
		return "list"
	case ObjectCycleStart:
		return "cycle-start"
	case ObjectCycleDef:
		return "cycle-def"
	case ObjectCycleStop:
		return "cycle-stop"
	case ObjectAddress:
		return "address"
	case ObjectTrace:
		return "trace"
	case ObjectPing:
		return "ping"
	default:
		return fmt.Sprintf("type(0x%02x)", uint16(t))
	}
}

// Header precedes every object in a capture.
type Header struct {
	Magic  uint16
	Type   ObjectType
	Length uint32
}

// Record is a measurement produced by the decoder: a *Trace or a *Ping.
type Record interface {
	Kind() ObjectType
	// Params returns the record level values in flag bit order.
	Params() Fields
	// Children returns the values of each hop or reply, in capture order.
	Children() []Fields
}

// Logger receives diagnostics about objects the decoder steps over.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Options tune how strictly a capture is decoded.
type Options struct {
	ExtensionPolicy   ExtensionPolicy
	StrictParamLength bool
	// MaxObjectSize bounds an object body; zero means DefaultMaxObjectSize.
	MaxObjectSize int64
	Logger        Logger
}

// State is the list and cycle bookkeeping established by the objects read so far.
type State struct {
	List  List
	Cycle Cycle
	// Deprecated is set once a type-5 address object was seen. From then on the
	// address table spans the whole capture.
	Deprecated bool
}

// Stats counts what the decoder consumed.
type Stats struct {
	Objects map[ObjectType]int
	Skipped int
	Bytes   int64
}

// Decoder reads records from a warts stream. It is not safe for concurrent use;
// decode independent captures with independent decoders.
type Decoder struct {
	r     *reader
	opts  Options
	addrs *AddressTable
	state State
	stats Stats
	err   error
}

func NewDecoder(r io.Reader, opts Options) *Decoder {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	if opts.MaxObjectSize <= 0 {
		opts.MaxObjectSize = DefaultMaxObjectSize
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Decoder{
		r:     newReader(r, 0),
		opts:  opts,
		addrs: NewAddressTable(),
		stats: Stats{Objects: make(map[ObjectType]int)},
	}
}

func (d *Decoder) State() State { return d.state }

// Err returns the error that stopped the decoder: io.EOF at the end of the capture, a
// *DecodeError once the stream can no longer be followed, nil while Next may be called.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) Stats() Stats {
	s := d.stats
	s.Objects = make(map[ObjectType]int, len(d.stats.Objects))
	for k, v := range d.stats.Objects {
		s.Objects[k] = v
	}
	s.Bytes = d.r.off
	return s
}

// Next returns the next trace or ping. Bookkeeping objects are consumed silently.
// It returns io.EOF once fewer than a header's worth of bytes remain.
//
// Errors are *DecodeError. Every object body is read whole before it is parsed, so after
// an error confined to one object the stream is still aligned and Next may be called
// again to carry on with the following object. Errors that leave the stream
// unaligned (ErrBadMagic, truncation of the stream) are returned again by every later call.
func (d *Decoder) Next() (Record, error) {
	if d.err != nil {
		return nil, d.err
	}
	for {
		off := d.r.off
		hdr, err := d.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.err = io.EOF
				return nil, io.EOF
			}
			d.err = &DecodeError{Offset: off, Type: hdr.Type, Err: err}
			return nil, d.err
		}
		if int64(hdr.Length) > d.opts.MaxObjectSize {
			d.err = &DecodeError{Offset: off, Type: hdr.Type,
				Err: fmt.Errorf("%w: %d bytes, limit %d", ErrObjectTooLarge, hdr.Length, d.opts.MaxObjectSize)}
			return nil, d.err
		}
		body := make([]byte, hdr.Length)
		if err := d.r.read(body); err != nil {
			if errors.Is(err, ErrTruncatedInput) {
				err = fmt.Errorf("%w: %v", errStreamTruncated, err)
			}
			d.err = &DecodeError{Offset: off, Type: hdr.Type, Err: err}
			return nil, d.err
		}
		d.stats.Objects[hdr.Type]++

		st := &state{
			r:     newReader(bytes.NewReader(body), off+headerLen),
			addrs: d.addrs,
			opts:  &d.opts,
		}
		rec, err := d.dispatch(hdr, st)
		if err != nil {
			return nil, &DecodeError{Offset: off, Type: hdr.Type, Err: err}
		}
		if left := int64(len(body)) - (st.r.off - off - headerLen); left > 0 {
			d.opts.Logger.Debugf("%s object at offset %d: %d trailing bytes ignored", hdr.Type, off, left)
		}
		if rec != nil {
			return rec, nil
		}
	}
}

// readHeader reads and checks an object header. A stream holding fewer than eight
// more bytes has ended.
func (d *Decoder) readHeader() (Header, error) {
	var buf [headerLen]byte
	n, err := io.ReadFull(d.r.r, buf[:])
	d.r.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if n > 0 {
				d.opts.Logger.Warnf("%d trailing bytes after last object", n)
			}
			return Header{}, io.EOF
		}
		return Header{}, err
	}
	hdr := Header{
		Magic:  uint16(buf[0])<<8 | uint16(buf[1]),
		Type:   ObjectType(uint16(buf[2])<<8 | uint16(buf[3])),
		Length: uint32(buf[4])<<24 | uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]),
	}
	if hdr.Magic != Magic {
		return hdr, fmt.Errorf("%w: 0x%04x", ErrBadMagic, hdr.Magic)
	}
	return hdr, nil
}

func (d *Decoder) dispatch(hdr Header, st *state) (Record, error) {
	switch hdr.Type {
	case ObjectList:
		return nil, d.readList(st)
	case ObjectCycleStart, ObjectCycleDef:
		return nil, d.readCycle(st)
	case ObjectCycleStop:
		return nil, d.readCycleStop(st)
	case ObjectAddress:
		d.state.Deprecated = true
		return nil, d.readDeprecatedAddress(st)
	case ObjectTrace:
		return d.readTrace(st)
	case ObjectPing:
		return d.readPing(st)
	default:
		d.stats.Skipped++
		d.opts.Logger.Warnf("skipping unsupported object type 0x%02x (%d bytes)", uint16(hdr.Type), hdr.Length)
		return nil, nil
	}
}

// readDeprecatedAddress reads `u8 id low byte | u8 type | 4 or 16 bytes`.
func (d *Decoder) readDeprecatedAddress(st *state) error {
	idMod, err := st.r.u8()
	if err != nil {
		return err
	}
	typ, err := st.r.u8()
	if err != nil {
		return err
	}
	size := Family(typ).size()
	if size == 0 {
		return fmt.Errorf("%w: type %d", ErrUnsupportedAddress, typ)
	}
	raw, err := st.r.bytes(size)
	if err != nil {
		return err
	}
	_, err = d.addrs.RegisterDeprecated(idMod, raw, Family(typ))
	return err
}

// resetAddresses starts a new address scope unless the capture uses the deprecated
// file-wide table.
func (d *Decoder) resetAddresses() {
	if !d.state.Deprecated {
		d.addrs.Reset()
	}
}
