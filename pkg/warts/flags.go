package warts

import (
	"fmt"
	"math/bits"
)

// FieldSet records which optional fields of a record were present in the capture.
// Bit i corresponds to schema position i.
type FieldSet uint64

func (s FieldSet) Has(pos int) bool { return pos >= 0 && pos < 64 && s&(1<<uint(pos)) != 0 }

func (s FieldSet) Len() int { return bits.OnesCount64(uint64(s)) }

func (s *FieldSet) set(pos int) { *s |= 1 << uint(pos) }

// Field is a named decoded value.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of decoded values, in flag bit order.
type Fields []Field

func (f Fields) Get(name string) (any, bool) {
	for _, v := range f {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, v := range f {
		names[i] = v.Name
	}
	return names
}

// state is the mutable context shared by every field decoder of one object.
type state struct {
	r     *reader
	addrs *AddressTable
	opts  *Options
}

// field describes one flag bit of a record kind: how to decode it into T and how to read it back.
type field[T any] struct {
	name   string
	decode func(*state, *T) error
	value  func(*T) any
}

// schema is indexed by flag bit position.
type schema[T any] []field[T]

// readFlagBits consumes the flag bytes and returns the set bit positions in ascending order,
// whether a parameter length follows.
func readFlagBits(r *reader) ([]int, bool, error) {
	var (
		positions []int
		n         int
		last      uint8
	)
	for {
		b, err := r.u8()
		if err != nil {
			return nil, false, fmt.Errorf("flag byte %d: %w", n+1, err)
		}
		for bit := 0; bit < 7; bit++ {
			if b&(1<<bit) != 0 {
				positions = append(positions, n*7+bit)
			}
		}
		n++
		last = b
		if b&0x80 == 0 {
			break
		}
	}
	return positions, last != 0 || n > 1, nil
}

// decodeFlags reads a flag set and decodes every field whose bit is set into rec.
func decodeFlags[T any](st *state, sc schema[T], rec *T) (FieldSet, error) {
	var set FieldSet
	positions, hasParams, err := readFlagBits(st.r)
	if err != nil || !hasParams {
		return set, err
	}
	for _, pos := range positions {
		if pos >= len(sc) {
			return set, fmt.Errorf("%w: bit %d set, %d fields known", ErrUnknownFlag, pos+1, len(sc))
		}
	}
	plen, err := st.r.u16()
	if err != nil {
		return set, fmt.Errorf("parameter length: %w", err)
	}
	start := st.r.off
	for _, pos := range positions {
		f := sc[pos]
		if err := f.decode(st, rec); err != nil {
			return set, fmt.Errorf("%s: %w", f.name, err)
		}
		set.set(pos)
	}
	used := st.r.off - start
	switch {
	case used == int64(plen):
	case used > int64(plen) || st.opts.StrictParamLength:
		return set, fmt.Errorf("%w: declared %d bytes, decoded %d", ErrSchemaLengthMismatch, plen, used)
	default:
		if err := st.r.skip(int64(plen) - used); err != nil {
			return set, err
		}
	}
	return set, nil
}

// fields lists the values present in set, in bit order.
func (sc schema[T]) fields(set FieldSet, rec *T) Fields {
	out := make(Fields, 0, set.Len())
	for pos, f := range sc {
		if set.Has(pos) {
			out = append(out, Field{Name: f.name, Value: f.value(rec)})
		}
	}
	return out
}

func (sc schema[T]) names(set FieldSet) []string {
	var out []string
	for pos, f := range sc {
		if set.Has(pos) {
			out = append(out, f.name)
		}
	}
	return out
}

func u8Field[T any](name string, p func(*T) *uint8) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.r.u8(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

func u16Field[T any](name string, p func(*T) *uint16) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.r.u16(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

func u32Field[T any](name string, p func(*T) *uint32) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.r.u32(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

func stringField[T any](name string, p func(*T) *string) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.r.cstring(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

func timevalField[T any](name string, p func(*T) *Timeval) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.r.timeval(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

// addrField decodes an embedded-or-referenced address.
func addrField[T any](name string, p func(*T) *Address) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.address(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

// refAddrField decodes a bare u32 id resolved against the address table.
func refAddrField[T any](name string, p func(*T) *Address) field[T] {
	return field[T]{
		name:   name,
		decode: func(st *state, rec *T) (err error) { *p(rec), err = st.referencedAddress(); return },
		value:  func(rec *T) any { return *p(rec) },
	}
}

// address reads `u8 len | u8 type, len bytes` for an embedded address, or
// `u8 0 | u32 id` for a reference to one registered earlier.
func (st *state) address() (Address, error) {
	n, err := st.r.u8()
	if err != nil {
		return Address{}, err
	}
	if n == 0 {
		return st.referencedAddress()
	}
	typ, err := st.r.u8()
	if err != nil {
		return Address{}, err
	}
	raw, err := st.r.bytes(int(n))
	if err != nil {
		return Address{}, err
	}
	id, err := st.addrs.Register(raw, Family(typ))
	if err != nil {
		return Address{}, err
	}
	return st.addrs.Resolve(id)
}

func (st *state) referencedAddress() (Address, error) {
	id, err := st.r.u32()
	if err != nil {
		return Address{}, err
	}
	return st.addrs.Resolve(id)
}

// addressList reads a u8 count followed by that many addresses.
func (st *state) addressList() ([]Address, error) {
	n, err := st.r.u8()
	if err != nil {
		return nil, err
	}
	out := make([]Address, 0, n)
	for i := 0; i < int(n); i++ {
		a, err := st.address()
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}
