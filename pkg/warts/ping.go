package warts

import (
	"fmt"
)

// PingField enumerates the optional fields of a ping object, in flag bit order.
type PingField int

const (
	PingListID PingField = iota
	PingCycleID
	PingSrcIPID
	PingDstIPID
	PingStart
	PingStopReason
	PingStopData
	PingDataLen
	PingData
	PingProbeCount
	PingProbeSize
	PingWait
	PingTTL
	PingReplyCount
	PingProbesSent
	PingMethod
	PingSrcPort
	PingDstPort
	PingUserID
	PingSrcAddr
	PingDstAddr
	PingFlags
	PingTOS
	PingTimestampPrespec
	PingICMPSum
	PingPMTU
	PingTimeout
	PingWaitUsec
)

// Ping is a decoded ping measurement.
type Ping struct {
	ListID     uint32
	CycleID    uint32
	SrcIPID    Address
	DstIPID    Address
	Start      Timeval
	StopReason uint8
	StopData   uint8
	DataLen    uint16
	Data       []byte
	ProbeCount uint16
	ProbeSize  uint16
	Wait       uint8
	TTL        uint8
	ReplyCount uint16
	ProbesSent uint16
	Method     uint8
	SrcPort    uint16
	DstPort    uint16
	UserID     uint32
	SrcAddr    Address
	DstAddr    Address
	Flags      uint8
	TOS        uint8
	Prespec    []Address
	ICMPSum    uint16
	PMTU       uint16
	Timeout    uint8
	WaitUsec   uint32
	Replies    []*PingReply

	present FieldSet
}

var pingSchema = schema[Ping]{
	PingListID:     u32Field("listid", func(p *Ping) *uint32 { return &p.ListID }),
	PingCycleID:    u32Field("cycleid", func(p *Ping) *uint32 { return &p.CycleID }),
	PingSrcIPID:    refAddrField("srcipid", func(p *Ping) *Address { return &p.SrcIPID }),
	PingDstIPID:    refAddrField("dstipid", func(p *Ping) *Address { return &p.DstIPID }),
	PingStart:      timevalField("timeval", func(p *Ping) *Timeval { return &p.Start }),
	PingStopReason: u8Field("stopreas", func(p *Ping) *uint8 { return &p.StopReason }),
	PingStopData:   u8Field("stopdata", func(p *Ping) *uint8 { return &p.StopData }),
	PingDataLen:    u16Field("datalen", func(p *Ping) *uint16 { return &p.DataLen }),
	PingData: {
		name:   "data",
		decode: func(st *state, p *Ping) (err error) { p.Data, err = st.r.bytes(int(p.DataLen)); return },
		value:  func(p *Ping) any { return p.Data },
	},
	PingProbeCount: u16Field("pcount", func(p *Ping) *uint16 { return &p.ProbeCount }),
	PingProbeSize:  u16Field("size", func(p *Ping) *uint16 { return &p.ProbeSize }),
	PingWait:       u8Field("wait", func(p *Ping) *uint8 { return &p.Wait }),
	PingTTL:        u8Field("ttl", func(p *Ping) *uint8 { return &p.TTL }),
	PingReplyCount: u16Field("rcount", func(p *Ping) *uint16 { return &p.ReplyCount }),
	PingProbesSent: u16Field("psent", func(p *Ping) *uint16 { return &p.ProbesSent }),
	PingMethod:     u8Field("method", func(p *Ping) *uint8 { return &p.Method }),
	PingSrcPort:    u16Field("sport", func(p *Ping) *uint16 { return &p.SrcPort }),
	PingDstPort:    u16Field("dport", func(p *Ping) *uint16 { return &p.DstPort }),
	PingUserID:     u32Field("userid", func(p *Ping) *uint32 { return &p.UserID }),
	PingSrcAddr:    addrField("srcaddr", func(p *Ping) *Address { return &p.SrcAddr }),
	PingDstAddr:    addrField("dstaddr", func(p *Ping) *Address { return &p.DstAddr }),
	PingFlags:      u8Field("flags", func(p *Ping) *uint8 { return &p.Flags }),
	PingTOS:        u8Field("tos", func(p *Ping) *uint8 { return &p.TOS }),
	PingTimestampPrespec: {
		name:   "tsps",
		decode: func(st *state, p *Ping) (err error) { p.Prespec, err = st.addressList(); return },
		value:  func(p *Ping) any { return p.Prespec },
	},
	PingICMPSum:  u16Field("icmpsum", func(p *Ping) *uint16 { return &p.ICMPSum }),
	PingPMTU:     u16Field("pmtu", func(p *Ping) *uint16 { return &p.PMTU }),
	PingTimeout:  u8Field("timeout", func(p *Ping) *uint8 { return &p.Timeout }),
	PingWaitUsec: u32Field("waitus", func(p *Ping) *uint32 { return &p.WaitUsec }),
}

func (p *Ping) Kind() ObjectType { return ObjectPing }

func (p *Ping) Has(f PingField) bool { return p.present.Has(int(f)) }

func (p *Ping) Params() Fields { return pingSchema.fields(p.present, p) }

func (p *Ping) Children() []Fields {
	out := make([]Fields, len(p.Replies))
	for i, r := range p.Replies {
		out[i] = r.Params()
	}
	return out
}

// PingReplyField enumerates the optional fields of a ping reply, in flag bit order.
type PingReplyField int

const (
	ReplyDstIPID PingReplyField = iota
	ReplyFlags
	ReplyTTL
	ReplySize
	ReplyICMP
	ReplyRTT
	ReplyProbeID
	ReplyIPID
	ReplyProbeIPID
	ReplyProto
	ReplyTCPFlags
	ReplyAddr
	ReplyV4RR
	ReplyV4TS
	ReplyIPID32
	ReplyTx
	ReplyTimestamp
)

// ICMPTimestamp holds the originate, receive and transmit times of an ICMP timestamp reply.
type ICMPTimestamp struct {
	Originate uint32
	Receive   uint32
	Transmit  uint32
}

// IPTimestamps is the content of an IPv4 timestamp option echoed in a reply.
type IPTimestamps struct {
	Stamps []uint32
	Addrs  []Address
}

// PingReply is one response to a ping probe.
type PingReply struct {
	DstIPID    Address
	Flags      uint8
	ReplyTTL   uint8
	ReplySize  uint16
	ICMPType   uint8
	ICMPCode   uint8
	RTT        uint32 // microseconds
	ProbeID    uint16
	ReplyIPID  uint16
	ProbeIPID  uint16
	ReplyProto uint8
	TCPFlags   uint8
	// Addr is the addr field, or the dstipid address when only that was recorded.
	Addr        Address
	RecordRoute []Address
	Timestamps  IPTimestamps
	ReplyIPID32 uint32
	Tx          Timeval
	TSReply     ICMPTimestamp

	present FieldSet
}

var pingReplySchema = schema[PingReply]{
	ReplyDstIPID: refAddrField("dstipid", func(r *PingReply) *Address { return &r.DstIPID }),
	ReplyFlags:   u8Field("flags", func(r *PingReply) *uint8 { return &r.Flags }),
	ReplyTTL:     u8Field("replyttl", func(r *PingReply) *uint8 { return &r.ReplyTTL }),
	ReplySize:    u16Field("replysize", func(r *PingReply) *uint16 { return &r.ReplySize }),
	ReplyICMP: {
		name:   "icmp",
		decode: func(st *state, r *PingReply) error { return st.icmpTypeCode(&r.ICMPType, &r.ICMPCode) },
		value:  func(r *PingReply) any { return uint16(r.ICMPType)<<8 | uint16(r.ICMPCode) },
	},
	ReplyRTT:       u32Field("rtt", func(r *PingReply) *uint32 { return &r.RTT }),
	ReplyProbeID:   u16Field("probeid", func(r *PingReply) *uint16 { return &r.ProbeID }),
	ReplyIPID:      u16Field("replyipid", func(r *PingReply) *uint16 { return &r.ReplyIPID }),
	ReplyProbeIPID: u16Field("probeipid", func(r *PingReply) *uint16 { return &r.ProbeIPID }),
	ReplyProto:     u8Field("replyproto", func(r *PingReply) *uint8 { return &r.ReplyProto }),
	ReplyTCPFlags:  u8Field("tcpflags", func(r *PingReply) *uint8 { return &r.TCPFlags }),
	ReplyAddr:      addrField("addr", func(r *PingReply) *Address { return &r.Addr }),
	ReplyV4RR: {
		name:   "v4rr",
		decode: func(st *state, r *PingReply) (err error) { r.RecordRoute, err = st.addressList(); return },
		value:  func(r *PingReply) any { return r.RecordRoute },
	},
	ReplyV4TS: {
		name:   "v4ts",
		decode: func(st *state, r *PingReply) (err error) { r.Timestamps, err = st.ipTimestamps(); return },
		value:  func(r *PingReply) any { return r.Timestamps },
	},
	ReplyIPID32: u32Field("replyipid32", func(r *PingReply) *uint32 { return &r.ReplyIPID32 }),
	ReplyTx:     timevalField("tx", func(r *PingReply) *Timeval { return &r.Tx }),
	ReplyTimestamp: {
		name:   "tsreply",
		decode: func(st *state, r *PingReply) (err error) { r.TSReply, err = st.icmpTimestamp(); return },
		value:  func(r *PingReply) any { return r.TSReply },
	},
}

func (r *PingReply) Has(f PingReplyField) bool { return r.present.Has(int(f)) }

// Params lists the reply values in bit order. icmp stays the combined type<<8|code value.
func (r *PingReply) Params() Fields { return pingReplySchema.fields(r.present, r) }

func (r *PingReply) family() Family {
	if r.Addr.Family == FamilyIPv6 {
		return FamilyIPv6
	}
	return FamilyIPv4
}

func (d *Decoder) readPing(st *state) (*Ping, error) {
	d.resetAddresses()

	p := &Ping{}
	var err error
	if p.present, err = decodeFlags(st, pingSchema, p); err != nil {
		return nil, fmt.Errorf("ping flags: %w", err)
	}
	// SrcAddr and DstAddr also carry the ipid addresses; the field map keeps the
	// flags as captured.
	if p.Has(PingSrcIPID) && !p.Has(PingSrcAddr) {
		p.SrcAddr = p.SrcIPID
	}
	if p.Has(PingDstIPID) && !p.Has(PingDstAddr) {
		p.DstAddr = p.DstIPID
	}

	count, err := st.r.u16()
	if err != nil {
		return nil, fmt.Errorf("reply count: %w", err)
	}
	p.Replies = make([]*PingReply, 0, count)
	for i := 0; i < int(count); i++ {
		r := &PingReply{}
		if r.present, err = decodeFlags(st, pingReplySchema, r); err != nil {
			return nil, fmt.Errorf("reply %d of %d: %w", i+1, count, err)
		}
		if r.Has(ReplyDstIPID) && !r.Has(ReplyAddr) {
			r.Addr = r.DstIPID
		}
		p.Replies = append(p.Replies, r)
	}
	return p, nil
}

// ipTimestamps reads `u8 tsc | u8 ipc | tsc x u32 | ipc x address`.
func (st *state) ipTimestamps() (IPTimestamps, error) {
	var ts IPTimestamps
	tsc, err := st.r.u8()
	if err != nil {
		return ts, err
	}
	ipc, err := st.r.u8()
	if err != nil {
		return ts, err
	}
	for i := 0; i < int(tsc); i++ {
		v, err := st.r.u32()
		if err != nil {
			return ts, err
		}
		ts.Stamps = append(ts.Stamps, v)
	}
	for i := 0; i < int(ipc); i++ {
		a, err := st.address()
		if err != nil {
			return ts, fmt.Errorf("timestamp address %d: %w", i, err)
		}
		ts.Addrs = append(ts.Addrs, a)
	}
	return ts, nil
}

func (st *state) icmpTimestamp() (ICMPTimestamp, error) {
	var (
		ts  ICMPTimestamp
		err error
	)
	for _, p := range []*uint32{&ts.Originate, &ts.Receive, &ts.Transmit} {
		if *p, err = st.r.u32(); err != nil {
			return ts, err
		}
	}
	return ts, nil
}
