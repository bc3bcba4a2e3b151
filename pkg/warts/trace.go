package warts

import (
	"fmt"
)

// TraceField enumerates the optional fields of a trace object, in flag bit order.
type TraceField int

const (
	TraceListID TraceField = iota
	TraceCycleID
	TraceSrcIPID
	TraceDstIPID
	TraceStart
	TraceStopReason
	TraceStopData
	TraceFlags
	TraceAttempts
	TraceHopLimit
	TraceType
	TraceProbeSize
	TraceSrcPort
	TraceDstPort
	TraceFirstTTL
	TraceIPTOS
	TraceTimeout
	TraceLoops
	TraceProbeHop
	TraceGapLimit
	TraceGapAction
	TraceLoopAction
	TraceProbesSent
	TraceMinWait
	TraceConfidence
	TraceSrcAddr
	TraceDstAddr
	TraceUserID
)

// Trace is a decoded traceroute.
type Trace struct {
	ListID     uint32
	CycleID    uint32
	SrcIPID    Address
	DstIPID    Address
	Start      Timeval
	StopReason uint8
	StopData   uint8
	Flags      uint8
	Attempts   uint8
	HopLimit   uint8
	Type       uint8
	ProbeSize  uint16
	SrcPort    uint16
	DstPort    uint16
	FirstTTL   uint8
	IPTOS      uint8
	Timeout    uint8
	Loops      uint8
	ProbeHop   uint16
	GapLimit   uint8
	GapAction  uint8
	LoopAction uint8
	ProbesSent uint16
	MinWait    uint8
	Confidence uint8
	SrcAddr    Address
	DstAddr    Address
	UserID     uint32
	Hops       []*Hop

	present FieldSet
}

var traceSchema = schema[Trace]{
	TraceListID:     u32Field("listid", func(t *Trace) *uint32 { return &t.ListID }),
	TraceCycleID:    u32Field("cycleid", func(t *Trace) *uint32 { return &t.CycleID }),
	TraceSrcIPID:    refAddrField("srcipid", func(t *Trace) *Address { return &t.SrcIPID }),
	TraceDstIPID:    refAddrField("dstipid", func(t *Trace) *Address { return &t.DstIPID }),
	TraceStart:      timevalField("timeval", func(t *Trace) *Timeval { return &t.Start }),
	TraceStopReason: u8Field("stopreas", func(t *Trace) *uint8 { return &t.StopReason }),
	TraceStopData:   u8Field("stopdata", func(t *Trace) *uint8 { return &t.StopData }),
	TraceFlags:      u8Field("traceflg", func(t *Trace) *uint8 { return &t.Flags }),
	TraceAttempts:   u8Field("attempts", func(t *Trace) *uint8 { return &t.Attempts }),
	TraceHopLimit:   u8Field("hoplimit", func(t *Trace) *uint8 { return &t.HopLimit }),
	TraceType:       u8Field("tracetyp", func(t *Trace) *uint8 { return &t.Type }),
	TraceProbeSize:  u16Field("probesiz", func(t *Trace) *uint16 { return &t.ProbeSize }),
	TraceSrcPort:    u16Field("srcport", func(t *Trace) *uint16 { return &t.SrcPort }),
	TraceDstPort:    u16Field("dstport", func(t *Trace) *uint16 { return &t.DstPort }),
	TraceFirstTTL:   u8Field("firsttl", func(t *Trace) *uint8 { return &t.FirstTTL }),
	TraceIPTOS:      u8Field("iptos", func(t *Trace) *uint8 { return &t.IPTOS }),
	TraceTimeout:    u8Field("timeout", func(t *Trace) *uint8 { return &t.Timeout }),
	TraceLoops:      u8Field("loops", func(t *Trace) *uint8 { return &t.Loops }),
	TraceProbeHop:   u16Field("probehop", func(t *Trace) *uint16 { return &t.ProbeHop }),
	TraceGapLimit:   u8Field("gaplimit", func(t *Trace) *uint8 { return &t.GapLimit }),
	TraceGapAction:  u8Field("gaprch", func(t *Trace) *uint8 { return &t.GapAction }),
	TraceLoopAction: u8Field("loopfnd", func(t *Trace) *uint8 { return &t.LoopAction }),
	TraceProbesSent: u16Field("probesent", func(t *Trace) *uint16 { return &t.ProbesSent }),
	TraceMinWait:    u8Field("minwait", func(t *Trace) *uint8 { return &t.MinWait }),
	TraceConfidence: u8Field("confid", func(t *Trace) *uint8 { return &t.Confidence }),
	TraceSrcAddr:    addrField("srcaddr", func(t *Trace) *Address { return &t.SrcAddr }),
	TraceDstAddr:    addrField("dstaddr", func(t *Trace) *Address { return &t.DstAddr }),
	TraceUserID:     u32Field("usrid", func(t *Trace) *uint32 { return &t.UserID }),
}

func (t *Trace) Kind() ObjectType { return ObjectTrace }

func (t *Trace) Has(f TraceField) bool { return t.present.Has(int(f)) }

func (t *Trace) Params() Fields { return traceSchema.fields(t.present, t) }

func (t *Trace) Children() []Fields {
	out := make([]Fields, len(t.Hops))
	for i, h := range t.Hops {
		out[i] = h.Params()
	}
	return out
}

// HopField enumerates the optional fields of a traceroute hop, in flag bit order.
type HopField int

const (
	HopAddrID HopField = iota
	HopProbeTTL
	HopReplyTTL
	HopFlags
	HopProbeID
	HopRTT
	HopICMP
	HopProbeSize
	HopReplySize
	HopIPID
	HopTOS
	HopMTU
	HopQuotedLen
	HopQuotedTTL
	HopTCPFlags
	HopQuotedTOS
	HopICMPExt
	HopAddr
	HopTx
)

// Hop is one reply recorded by a traceroute.
type Hop struct {
	AddrID    Address
	ProbeTTL  uint8
	ReplyTTL  uint8
	Flags     uint8
	ProbeID   uint8
	RTT       uint32 // microseconds
	ICMPType  uint8
	ICMPCode  uint8
	ProbeSize uint16
	ReplySize uint16
	// IPID is 0 when absent from the capture.
	IPID      uint16
	TOS       uint8
	MTU       uint16
	QuotedLen uint16
	// QuotedTTL is 1 when absent from the capture.
	QuotedTTL  uint8
	TCPFlags   uint8
	QuotedTOS  uint8
	Extensions []ICMPExtension
	Addr       Address
	Tx         Timeval

	present FieldSet
}

var hopSchema = schema[Hop]{
	HopAddrID:   refAddrField("addrid", func(h *Hop) *Address { return &h.AddrID }),
	HopProbeTTL: u8Field("probettl", func(h *Hop) *uint8 { return &h.ProbeTTL }),
	HopReplyTTL: u8Field("replyttl", func(h *Hop) *uint8 { return &h.ReplyTTL }),
	HopFlags:    u8Field("hopflags", func(h *Hop) *uint8 { return &h.Flags }),
	HopProbeID:  u8Field("probeid", func(h *Hop) *uint8 { return &h.ProbeID }),
	HopRTT:      u32Field("rtt", func(h *Hop) *uint32 { return &h.RTT }),
	HopICMP: {
		name:   "icmp",
		decode: func(st *state, h *Hop) error { return st.icmpTypeCode(&h.ICMPType, &h.ICMPCode) },
		value:  func(h *Hop) any { return uint16(h.ICMPType)<<8 | uint16(h.ICMPCode) },
	},
	HopProbeSize: u16Field("probesize", func(h *Hop) *uint16 { return &h.ProbeSize }),
	HopReplySize: u16Field("replysize", func(h *Hop) *uint16 { return &h.ReplySize }),
	HopIPID:      u16Field("ipid", func(h *Hop) *uint16 { return &h.IPID }),
	HopTOS:       u8Field("tos", func(h *Hop) *uint8 { return &h.TOS }),
	HopMTU:       u16Field("mtu", func(h *Hop) *uint16 { return &h.MTU }),
	HopQuotedLen: u16Field("qlen", func(h *Hop) *uint16 { return &h.QuotedLen }),
	HopQuotedTTL: u8Field("qttl", func(h *Hop) *uint8 { return &h.QuotedTTL }),
	HopTCPFlags:  u8Field("tcpflags", func(h *Hop) *uint8 { return &h.TCPFlags }),
	HopQuotedTOS: u8Field("qtos", func(h *Hop) *uint8 { return &h.QuotedTOS }),
	HopICMPExt: {
		name:   "icmpext",
		decode: func(st *state, h *Hop) (err error) { h.Extensions, err = st.icmpExtensions(); return },
		value:  func(h *Hop) any { return h.Extensions },
	},
	HopAddr: addrField("addr", func(h *Hop) *Address { return &h.Addr }),
	HopTx:   timevalField("tx", func(h *Hop) *Timeval { return &h.Tx }),
}

// Has reports whether f was present in the capture. Defaults and back-filled values do not count.
func (h *Hop) Has(f HopField) bool { return h.present.Has(int(f)) }

// Params lists the hop values in bit order. The icmp field is split into icmp_type and icmp_code,
// and ipid and qttl are always listed with their defaults applied.
func (h *Hop) Params() Fields {
	out := make(Fields, 0, h.present.Len()+3)
	for pos, f := range hopSchema {
		switch HopField(pos) {
		case HopICMP:
			if h.Has(HopICMP) {
				out = append(out, Field{Name: "icmp_type", Value: h.ICMPType}, Field{Name: "icmp_code", Value: h.ICMPCode})
			}
			continue
		case HopIPID, HopQuotedTTL:
		case HopAddr:
			if !h.Has(HopAddr) && !h.Has(HopAddrID) {
				continue
			}
		default:
			if !h.present.Has(pos) {
				continue
			}
		}
		out = append(out, Field{Name: f.name, Value: f.value(h)})
	}
	return out
}

// family is the address family of the responding router, defaulting to IPv4.
func (h *Hop) family() Family {
	if h.Addr.Family == FamilyIPv6 {
		return FamilyIPv6
	}
	return FamilyIPv4
}

func (d *Decoder) readTrace(st *state) (*Trace, error) {
	d.resetAddresses()

	t := &Trace{}
	var err error
	if t.present, err = decodeFlags(st, traceSchema, t); err != nil {
		return nil, fmt.Errorf("trace flags: %w", err)
	}
	// deprecated captures only carry the ids
	if t.Has(TraceSrcIPID) && !t.Has(TraceSrcAddr) {
		t.SrcAddr = t.SrcIPID
		t.present.set(int(TraceSrcAddr))
	}
	if t.Has(TraceDstIPID) && !t.Has(TraceDstAddr) {
		t.DstAddr = t.DstIPID
		t.present.set(int(TraceDstAddr))
	}

	count, err := st.r.u16()
	if err != nil {
		return nil, fmt.Errorf("hop count: %w", err)
	}
	t.Hops = make([]*Hop, 0, count)
	for i := 0; i < int(count); i++ {
		h, err := readHop(st)
		if err != nil {
			return nil, fmt.Errorf("hop %d of %d: %w", i+1, count, err)
		}
		t.Hops = append(t.Hops, h)
	}

	end, err := st.r.u16()
	if err != nil {
		return nil, fmt.Errorf("trace end: %w", err)
	}
	if end != 0 {
		return nil, fmt.Errorf("%w: got 0x%04x", ErrMalformedTraceEnd, end)
	}
	return t, nil
}

func readHop(st *state) (*Hop, error) {
	h := &Hop{}
	var err error
	if h.present, err = decodeFlags(st, hopSchema, h); err != nil {
		return nil, err
	}
	if h.Has(HopAddrID) && !h.Has(HopAddr) {
		h.Addr = h.AddrID
	}
	// an absent ipid is zero, which the struct already holds
	if !h.Has(HopQuotedTTL) {
		h.QuotedTTL = 1
	}
	return h, nil
}

// icmpTypeCode splits the u16 icmp field into its type (high byte) and code (low byte).
func (st *state) icmpTypeCode(typ, code *uint8) error {
	v, err := st.r.u16()
	if err != nil {
		return err
	}
	*typ = uint8(v >> 8)
	*code = uint8(v)
	return nil
}
