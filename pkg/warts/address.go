package warts

import (
	"fmt"
	"net/netip"
)

// Family is the address type code used on the wire.
type Family uint8

const (
	FamilyIPv4 Family = 0x01
	FamilyIPv6 Family = 0x02
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

func (f Family) size() int {
	switch f {
	case FamilyIPv4:
		return 4
	case FamilyIPv6:
		return 16
	default:
		return 0
	}
}

// Address is an entry of the address reference table.
type Address struct {
	ID     uint32
	Family Family
	Addr   netip.Addr
}

// newAddress validates raw against family. A zero family is inferred from the length.
func newAddress(family Family, raw []byte) (Address, error) {
	if family == 0 {
		switch len(raw) {
		case 4:
			family = FamilyIPv4
		case 16:
			family = FamilyIPv6
		}
	}
	if family.size() == 0 {
		return Address{}, fmt.Errorf("%w: type %d", ErrUnsupportedAddress, uint8(family))
	}
	if len(raw) != family.size() {
		return Address{}, fmt.Errorf("%w: %s address of %d bytes", ErrUnsupportedAddress, family, len(raw))
	}
	addr, _ := netip.AddrFromSlice(raw)
	return Address{Family: family, Addr: addr}, nil
}

// Bytes returns the 4 or 16 address octets.
func (a Address) Bytes() []byte { return a.Addr.AsSlice() }

func (a Address) IsValid() bool { return a.Addr.IsValid() }

func (a Address) String() string {
	if !a.Addr.IsValid() {
		return ""
	}
	return a.Addr.String()
}

// AddressTable maps the small integer ids used by referenced addresses to the address
// they stand for. A table is owned by a single Decoder.
type AddressTable struct {
	entries map[uint32]Address
}

func NewAddressTable() *AddressTable {
	return &AddressTable{entries: make(map[uint32]Address)}
}

func (t *AddressTable) Len() int { return len(t.entries) }

// Register stores an embedded address under the next 0-based id.
func (t *AddressTable) Register(raw []byte, family Family) (uint32, error) {
	a, err := newAddress(family, raw)
	if err != nil {
		return 0, err
	}
	a.ID = uint32(len(t.entries))
	t.entries[a.ID] = a
	return a.ID, nil
}

// RegisterDeprecated stores an address from a type-5 object. Ids are 1-based and the low
// byte embedded in the object must agree with the computed id modulo 255.
func (t *AddressTable) RegisterDeprecated(idMod uint8, raw []byte, family Family) (uint32, error) {
	id := uint32(len(t.entries)) + 1
	if id%255 != uint32(idMod) {
		return 0, fmt.Errorf("%w: computed id %d, embedded %d", ErrAddressIDMismatch, id, idMod)
	}
	a, err := newAddress(family, raw)
	if err != nil {
		return 0, err
	}
	a.ID = id
	t.entries[id] = a
	return id, nil
}

func (t *AddressTable) Resolve(id uint32) (Address, error) {
	a, ok := t.entries[id]
	if !ok {
		return Address{}, fmt.Errorf("%w: id %d", ErrUnresolvedReference, id)
	}
	return a, nil
}

func (t *AddressTable) Reset() {
	clear(t.entries)
}
