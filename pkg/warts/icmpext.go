package warts

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	icmpExtHeaderLen = 4
	mplsEntryLen     = 4

	icmpExtClassMPLS = 1
	icmpExtTypeMPLS  = 1
)

// ExtensionPolicy selects what happens to ICMP extensions other than MPLS label stacks.
type ExtensionPolicy uint8

const (
	// ExtensionStrict fails the record with ErrUnsupportedExtension.
	ExtensionStrict ExtensionPolicy = iota
	// ExtensionSkip keeps the undecoded body and carries on with the next extension.
	ExtensionSkip
)

func (p ExtensionPolicy) String() string {
	switch p {
	case ExtensionStrict:
		return "strict"
	case ExtensionSkip:
		return "skip"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// UnmarshalText lets configuration loaders decode a policy by name.
func (p *ExtensionPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "strict":
		*p = ExtensionStrict
	case "skip":
		*p = ExtensionSkip
	default:
		return fmt.Errorf("unknown extension policy %q (must be strict or skip)", text)
	}
	return nil
}

func (p ExtensionPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// MPLSLabel is one label stack entry (RFC 4950).
type MPLSLabel struct {
	Label uint32
	Exp   uint8
	S     bool
	TTL   uint8
}

func (l MPLSLabel) String() string {
	s := 0
	if l.S {
		s = 1
	}
	return fmt.Sprintf("mpls ext ttl: %d, s: %d, exp: %d, label: %d", l.TTL, s, l.Exp, l.Label)
}

// parseMPLSLabel decodes the 4-byte entry the way scamper stores it: the bytes are taken
// from a little-endian 32-bit load.
func parseMPLSLabel(b []byte) MPLSLabel {
	u := binary.LittleEndian.Uint32(b)
	b0 := uint8(u)
	b1 := uint8(u >> 8)
	b2 := uint8(u >> 16)
	b3 := uint8(u >> 24)
	return MPLSLabel{
		Label: uint32(b0)<<12 | uint32(b1)<<4 | uint32(b2>>4),
		Exp:   (b2 >> 1) & 0x7,
		S:     b2&0x1 == 1,
		TTL:   b3,
	}
}

// ICMPExtension is one TLV object of an ICMP extension structure.
type ICMPExtension struct {
	Class uint8
	Type  uint8
	MPLS  []MPLSLabel
	// Data holds the raw body of extensions kept under ExtensionSkip.
	Data []byte
}

func (e ICMPExtension) IsMPLS() bool {
	return e.Class == icmpExtClassMPLS && e.Type == icmpExtTypeMPLS
}

func (e ICMPExtension) String() string {
	if e.IsMPLS() {
		parts := make([]string, len(e.MPLS))
		for i, l := range e.MPLS {
			parts[i] = l.String()
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprintf("class %d type %d: %x", e.Class, e.Type, e.Data)
}

// icmpExtensions reads `u16 total | {u16 len, u8 class, u8 type, len bytes}...`.
func (st *state) icmpExtensions() ([]ICMPExtension, error) {
	total, err := st.r.u16()
	if err != nil {
		return nil, err
	}
	var exts []ICMPExtension
	remaining := int(total)
	for remaining > 0 {
		if remaining < icmpExtHeaderLen {
			return exts, fmt.Errorf("%w: %d extension bytes left, header needs %d", ErrTruncatedInput, remaining, icmpExtHeaderLen)
		}
		dl, err := st.r.u16()
		if err != nil {
			return exts, err
		}
		class, err := st.r.u8()
		if err != nil {
			return exts, err
		}
		typ, err := st.r.u8()
		if err != nil {
			return exts, err
		}
		remaining -= icmpExtHeaderLen
		if int(dl) > remaining {
			return exts, fmt.Errorf("%w: extension of %d bytes with %d left", ErrTruncatedInput, dl, remaining)
		}

		ext := ICMPExtension{Class: class, Type: typ}
		switch {
		case ext.IsMPLS():
			ext.MPLS, err = st.mplsLabels(int(dl))
		case st.opts.ExtensionPolicy == ExtensionSkip:
			ext.Data, err = st.r.bytes(int(dl))
		default:
			err = fmt.Errorf("%w: class %d type %d", ErrUnsupportedExtension, class, typ)
		}
		if err != nil {
			return exts, err
		}
		exts = append(exts, ext)
		remaining -= int(dl)
	}
	return exts, nil
}

// mplsLabels decodes n bytes of label stack entries. A partial trailing entry is discarded.
func (st *state) mplsLabels(n int) ([]MPLSLabel, error) {
	labels := make([]MPLSLabel, 0, n/mplsEntryLen)
	var buf [mplsEntryLen]byte
	for ; n >= mplsEntryLen; n -= mplsEntryLen {
		if err := st.r.read(buf[:]); err != nil {
			return labels, err
		}
		labels = append(labels, parseMPLSLabel(buf[:]))
	}
	if n > 0 {
		if err := st.r.skip(int64(n)); err != nil {
			return labels, err
		}
	}
	return labels, nil
}
