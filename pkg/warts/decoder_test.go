package warts

import (
	"bytes"
	"errors"
	"io"
	"net/netip"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mock.Mock
}

func (m *mockLogger) Debugf(format string, args ...interface{}) {}

func (m *mockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func decodeAll(t *testing.T, data []byte, opts Options) []Record {
	t.Helper()
	dec := NewDecoder(bytes.NewReader(data), opts)
	var out []Record
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func listObject() []byte {
	body := (&wire{}).u32(1).u32(100).str("default").
		params((&wire{}).str("topology probe").bytes(), int(ListDescription)).bytes()
	return body
}

func cycleObject(wid uint32) []byte {
	return (&wire{}).u32(wid).u32(1).u32(7).u32(1420070400).
		params((&wire{}).str("vp1.example").bytes(), int(CycleHostname)).bytes()
}

// traceObject builds a two hop IPv4 trace using embedded and referenced addresses.
func traceObject() []byte {
	params := (&wire{}).
		u32(1).                           // listid
		u32(7).                           // cycleid
		u32(1420070401).u32(250000).      // timeval
		u8(1).                            // stopreas
		u16(33435).                       // dstport
		addr(FamilyIPv4, 192, 0, 2, 1).   // srcaddr, id 0
		addr(FamilyIPv4, 203, 0, 113, 9). // dstaddr, id 1
		bytes()
	hop1Params := (&wire{}).
		u8(1).                             // probettl
		u32(1234).                         // rtt
		u16(0x0b00).                       // icmp time exceeded
		addr(FamilyIPv4, 198, 51, 100, 1). // addr, id 2
		bytes()
	hop2Params := (&wire{}).
		u8(2).       // probettl
		u32(5678).   // rtt
		u16(0x0803). // icmp
		u16(4242).   // ipid
		u8(3).       // qttl
		ref(1).      // addr
		bytes()
	return (&wire{}).
		params(params, int(TraceListID), int(TraceCycleID), int(TraceStart), int(TraceStopReason),
			int(TraceDstPort), int(TraceSrcAddr), int(TraceDstAddr)).
		u16(2).
		params(hop1Params, int(HopProbeTTL), int(HopRTT), int(HopICMP), int(HopAddr)).
		params(hop2Params, int(HopProbeTTL), int(HopRTT), int(HopICMP), int(HopIPID), int(HopQuotedTTL), int(HopAddr)).
		u16(0).
		bytes()
}

func pingObject() []byte {
	params := (&wire{}).
		u16(3).                        // datalen
		raw([]byte{0xca, 0xfe, 0x01}). // data
		u16(4).                        // pcount
		addr(FamilyIPv6, netip.MustParseAddr("2001:db8::1").AsSlice()...).
		addr(FamilyIPv6, netip.MustParseAddr("2001:db8::53").AsSlice()...).
		bytes()
	reply := (&wire{}).
		u8(57).               // replyttl
		u16(0x8100).          // icmp echo reply
		u32(20011).           // rtt
		ref(1).               // addr
		u32(1).u32(2).u32(3). // tsreply
		bytes()
	return (&wire{}).
		params(params, int(PingDataLen), int(PingData), int(PingProbeCount), int(PingSrcAddr), int(PingDstAddr)).
		u16(1).
		params(reply, int(ReplyTTL), int(ReplyICMP), int(ReplyRTT), int(ReplyAddr), int(ReplyTimestamp)).
		bytes()
}

func TestDecoderMinimalTrace(t *testing.T) {
	data := (&wire{}).object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).bytes()

	recs := decodeAll(t, data, Options{})
	require.Len(t, recs, 1)

	tr, ok := recs[0].(*Trace)
	require.True(t, ok)
	assert.Empty(t, tr.Params())
	assert.Empty(t, tr.Hops)
	assert.Empty(t, tr.Children())
	assert.Equal(t, ObjectTrace, tr.Kind())
}

func TestDecoderListOnly(t *testing.T) {
	data := (&wire{}).object(ObjectList, listObject()).bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	rec, err := dec.Next()
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, ErrTruncatedInput)

	st := dec.State()
	assert.Equal(t, uint32(1), st.List.WListID)
	assert.Equal(t, uint32(100), st.List.ListID)
	assert.Equal(t, "default", st.List.Name)
	assert.Equal(t, "topology probe", st.List.Description)
	assert.Equal(t, 1, dec.Stats().Objects[ObjectList])
}

func TestDecoderTrace(t *testing.T) {
	data := (&wire{}).
		object(ObjectList, listObject()).
		object(ObjectCycleStart, cycleObject(3)).
		object(ObjectTrace, traceObject()).
		object(ObjectCycleStop, (&wire{}).u32(3).u32(1420074000).u8(0).bytes()).
		bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	rec, err := dec.Next()
	require.NoError(t, err)
	tr := rec.(*Trace)

	assert.Equal(t, []string{"listid", "cycleid", "timeval", "stopreas", "dstport", "srcaddr", "dstaddr"}, tr.Params().Names())
	assert.Equal(t, uint32(7), tr.CycleID)
	assert.InDelta(t, 1420070401.25, tr.Start.Seconds(), 1e-9)
	assert.Equal(t, "192.0.2.1", tr.SrcAddr.String())
	assert.Equal(t, "203.0.113.9", tr.DstAddr.String())
	assert.False(t, tr.Has(TraceSrcIPID))

	require.Len(t, tr.Hops, 2)
	h1, h2 := tr.Hops[0], tr.Hops[1]

	assert.Equal(t, "198.51.100.1", h1.Addr.String())
	assert.Equal(t, uint16(0), h1.IPID)
	assert.Equal(t, uint8(1), h1.QuotedTTL)
	assert.False(t, h1.Has(HopIPID))
	assert.False(t, h1.Has(HopQuotedTTL))
	assert.Equal(t, uint8(11), h1.ICMPType)
	assert.Equal(t, uint8(0), h1.ICMPCode)

	assert.Equal(t, "203.0.113.9", h2.Addr.String(), "referenced address resolves within the trace")
	assert.Equal(t, uint16(4242), h2.IPID)
	assert.Equal(t, uint8(3), h2.QuotedTTL)
	assert.Equal(t, uint8(8), h2.ICMPType)
	assert.Equal(t, uint8(3), h2.ICMPCode)

	assert.Equal(t, []string{"probettl", "rtt", "icmp_type", "icmp_code", "ipid", "qttl", "addr"}, tr.Children()[0].Names())

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)

	st := dec.State()
	assert.Equal(t, "vp1.example", st.Cycle.Hostname)
	assert.True(t, st.Cycle.Stopped)
	assert.Equal(t, uint32(1420074000), st.Cycle.Stop)
	assert.False(t, st.Deprecated)
}

func TestDecoderPing(t *testing.T) {
	data := (&wire{}).object(ObjectPing, pingObject()).bytes()

	recs := decodeAll(t, data, Options{})
	require.Len(t, recs, 1)
	p := recs[0].(*Ping)

	assert.Equal(t, ObjectPing, p.Kind())
	assert.Equal(t, []byte{0xca, 0xfe, 0x01}, p.Data)
	assert.Equal(t, uint16(4), p.ProbeCount)
	assert.Equal(t, "2001:db8::1", p.SrcAddr.String())
	assert.Equal(t, FamilyIPv6, p.DstAddr.Family)

	require.Len(t, p.Replies, 1)
	r := p.Replies[0]
	assert.Equal(t, "2001:db8::53", r.Addr.String())
	assert.Equal(t, uint8(0x81), r.ICMPType)
	assert.Equal(t, uint32(20011), r.RTT)
	assert.Equal(t, ICMPTimestamp{Originate: 1, Receive: 2, Transmit: 3}, r.TSReply)
	assert.Equal(t, []string{"replyttl", "icmp", "rtt", "addr", "tsreply"}, p.Children()[0].Names())
	icmp, ok := p.Children()[0].Get("icmp")
	require.True(t, ok)
	assert.Equal(t, uint16(0x8100), icmp)
}

func TestDecoderPingIPIDsKeepFieldMap(t *testing.T) {
	ping := (&wire{}).
		params((&wire{}).u32(1).u32(2).bytes(), int(PingSrcIPID), int(PingDstIPID)).
		u16(1).
		params((&wire{}).u32(2).u16(0x0000).bytes(), int(ReplyDstIPID), int(ReplyICMP)).
		bytes()
	data := (&wire{}).
		object(ObjectAddress, (&wire{}).u8(1, uint8(FamilyIPv4)).raw([]byte{192, 0, 2, 1}).bytes()).
		object(ObjectAddress, (&wire{}).u8(2, uint8(FamilyIPv4)).raw([]byte{192, 0, 2, 2}).bytes()).
		object(ObjectPing, ping).
		bytes()

	recs := decodeAll(t, data, Options{})
	require.Len(t, recs, 1)
	p := recs[0].(*Ping)

	assert.Equal(t, []string{"srcipid", "dstipid"}, p.Params().Names())
	assert.False(t, p.Has(PingSrcAddr))
	assert.False(t, p.Has(PingDstAddr))
	assert.Equal(t, "192.0.2.1", p.SrcAddr.String())
	assert.Equal(t, "192.0.2.2", p.DstAddr.String())

	r := p.Replies[0]
	assert.Equal(t, []string{"dstipid", "icmp"}, r.Params().Names())
	assert.False(t, r.Has(ReplyAddr))
	assert.Equal(t, "192.0.2.2", r.Addr.String())
	_, ok := r.Params().Get("addr")
	assert.False(t, ok)
}

func TestDecodePingTimestampPrespec(t *testing.T) {
	fields := (&wire{}).
		u8(2).
		addr(FamilyIPv4, 192, 0, 2, 1).
		addr(FamilyIPv4, 192, 0, 2, 2).
		bytes()
	buf := (&wire{}).params(fields, int(PingTimestampPrespec)).u8(0xff).bytes()

	st := newTestState(buf, Options{StrictParamLength: true})
	p := &Ping{}
	set, err := decodeFlags(st, pingSchema, p)
	require.NoError(t, err)
	assert.Equal(t, int64(len(buf)-1), st.r.off, "decoding stops at the parameter length")

	p.present = set
	assert.Equal(t, []string{"tsps"}, p.Params().Names())
	require.Len(t, p.Prespec, 2)
	assert.Equal(t, "192.0.2.1", p.Prespec[0].String())
	assert.Equal(t, "192.0.2.2", p.Prespec[1].String())
}

func TestDecodePingReplyIPOptions(t *testing.T) {
	fields := (&wire{}).
		u8(2).                         // v4rr count
		addr(FamilyIPv4, 10, 0, 0, 1). // id 0
		addr(FamilyIPv4, 10, 0, 0, 2). // id 1
		u8(2, 1).                      // v4ts tsc, ipc
		u32(100).u32(200).             // stamps
		ref(1).                        // v4ts address
		bytes()
	buf := (&wire{}).params(fields, int(ReplyV4RR), int(ReplyV4TS)).u8(0xff).bytes()

	st := newTestState(buf, Options{StrictParamLength: true})
	r := &PingReply{}
	set, err := decodeFlags(st, pingReplySchema, r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(buf)-1), st.r.off, "decoding stops at the parameter length")

	r.present = set
	assert.Equal(t, []string{"v4rr", "v4ts"}, r.Params().Names())
	require.Len(t, r.RecordRoute, 2)
	assert.Equal(t, "10.0.0.1", r.RecordRoute[0].String())
	assert.Equal(t, "10.0.0.2", r.RecordRoute[1].String())
	assert.Equal(t, []uint32{100, 200}, r.Timestamps.Stamps)
	require.Len(t, r.Timestamps.Addrs, 1)
	assert.Equal(t, "10.0.0.2", r.Timestamps.Addrs[0].String())
}

func TestDecodePingReplyTimestampsTruncated(t *testing.T) {
	fields := (&wire{}).u8(3, 0).u32(100).bytes()
	buf := (&wire{}).params(fields, int(ReplyV4TS)).bytes()

	_, err := decodeFlags(newTestState(buf, Options{}), pingReplySchema, &PingReply{})
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestDecoderMalformedTraceEnd(t *testing.T) {
	data := (&wire{}).
		object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x01}).
		object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).
		bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrMalformedTraceEnd)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(0), de.Offset)
	assert.Equal(t, ObjectTrace, de.Type)

	assert.NoError(t, dec.Err())

	rec, err := dec.Next()
	require.NoError(t, err, "the next object is still aligned")
	assert.NotNil(t, rec)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, io.EOF, dec.Err())
}

func TestDecoderAddressScopeResets(t *testing.T) {
	first := (&wire{}).
		params((&wire{}).addr(FamilyIPv4, 192, 0, 2, 1).bytes(), int(TraceDstAddr)).
		u16(0).u16(0).bytes()
	second := (&wire{}).
		params((&wire{}).ref(0).bytes(), int(TraceDstAddr)).
		u16(0).u16(0).bytes()
	data := (&wire{}).object(ObjectTrace, first).object(ObjectTrace, second).bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	_, err := dec.Next()
	require.NoError(t, err)

	_, err = dec.Next()
	assert.ErrorIs(t, err, ErrUnresolvedReference)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderDeprecatedAddresses(t *testing.T) {
	trace := func(src, dst uint32) []byte {
		return (&wire{}).
			params((&wire{}).u32(src).u32(dst).bytes(), int(TraceSrcIPID), int(TraceDstIPID)).
			u16(1).
			params((&wire{}).u32(dst).bytes(), int(HopAddrID)).
			u16(0).bytes()
	}
	data := (&wire{}).
		object(ObjectAddress, (&wire{}).u8(1, uint8(FamilyIPv4)).raw([]byte{192, 0, 2, 1}).bytes()).
		object(ObjectAddress, (&wire{}).u8(2, uint8(FamilyIPv4)).raw([]byte{192, 0, 2, 2}).bytes()).
		object(ObjectTrace, trace(1, 2)).
		object(ObjectTrace, trace(2, 1)).
		bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	var traces []*Trace
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		traces = append(traces, rec.(*Trace))
	}
	require.Len(t, traces, 2)
	assert.True(t, dec.State().Deprecated)

	assert.Equal(t, "192.0.2.1", traces[0].SrcAddr.String())
	assert.Equal(t, "192.0.2.2", traces[0].DstAddr.String())
	assert.True(t, traces[0].Has(TraceSrcAddr), "srcaddr is back-filled from srcipid")
	assert.Equal(t, "192.0.2.2", traces[0].Hops[0].Addr.String())

	assert.Equal(t, "192.0.2.1", traces[1].DstAddr.String(), "the table persists across traces")
	assert.Equal(t, []string{"addrid", "ipid", "qttl", "addr"}, traces[1].Children()[0].Names())
}

func TestDecoderDeprecatedAddressMismatch(t *testing.T) {
	data := (&wire{}).
		object(ObjectAddress, (&wire{}).u8(5, uint8(FamilyIPv4)).raw([]byte{192, 0, 2, 1}).bytes()).
		bytes()

	_, err := NewDecoder(bytes.NewReader(data), Options{}).Next()
	assert.ErrorIs(t, err, ErrAddressIDMismatch)
}

func TestDecoderBadMagicIsSticky(t *testing.T) {
	data := (&wire{}).u16(0xbeef).u16(uint16(ObjectTrace)).u32(0).bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err2 := dec.Next()
	assert.Equal(t, err, err2)
	assert.Equal(t, err, dec.Err())
}

func TestDecoderTruncatedObject(t *testing.T) {
	full := (&wire{}).object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).bytes()

	dec := NewDecoder(bytes.NewReader(full[:len(full)-2]), Options{})
	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrTruncatedInput)

	_, err = dec.Next()
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestDecoderBodyReadError(t *testing.T) {
	full := (&wire{}).object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).bytes()
	errChecksum := errors.New("gzip: invalid checksum")
	src := io.MultiReader(bytes.NewReader(full[:len(full)-2]), iotest.ErrReader(errChecksum))

	dec := NewDecoder(src, Options{})
	_, err := dec.Next()
	assert.ErrorIs(t, err, errChecksum)
	assert.NotErrorIs(t, err, ErrTruncatedInput)
	assert.ErrorIs(t, dec.Err(), errChecksum)
}

func TestDecoderFieldOverrunsObject(t *testing.T) {
	// hop count says one hop but the body ends
	data := (&wire{}).
		object(ObjectTrace, []byte{0x00, 0x00, 0x01}).
		object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).
		bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{})
	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrTruncatedInput)

	_, err = dec.Next()
	assert.NoError(t, err)
}

func TestDecoderObjectTooLarge(t *testing.T) {
	data := (&wire{}).object(ObjectTrace, make([]byte, 64)).bytes()

	_, err := NewDecoder(bytes.NewReader(data), Options{MaxObjectSize: 32}).Next()
	assert.ErrorIs(t, err, ErrObjectTooLarge)
}

func TestDecoderSkipsUnknownObjects(t *testing.T) {
	log := &mockLogger{}
	log.On("Warnf", mock.Anything, mock.Anything).Once()

	data := (&wire{}).
		object(ObjectType(0x0c), []byte{1, 2, 3, 4, 5, 6}).
		object(ObjectTrace, []byte{0x00, 0x00, 0x00, 0x00, 0x00}).
		bytes()

	dec := NewDecoder(bytes.NewReader(data), Options{Logger: log})
	rec, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, ObjectTrace, rec.Kind())

	stats := dec.Stats()
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Objects[ObjectType(0x0c)])
	assert.Equal(t, int64(len(data)), stats.Bytes)
	log.AssertExpectations(t)
}

func TestDecoderTrailingPartialHeader(t *testing.T) {
	data := append((&wire{}).object(ObjectList, listObject()).bytes(), 0x12, 0x05, 0x00)

	recs := decodeAll(t, data, Options{})
	assert.Empty(t, recs)
}

func TestDecoderDeterministic(t *testing.T) {
	data := (&wire{}).
		object(ObjectList, listObject()).
		object(ObjectCycleDef, cycleObject(1)).
		object(ObjectTrace, traceObject()).
		object(ObjectPing, pingObject()).
		object(ObjectTrace, traceObject()).
		bytes()

	view := func(recs []Record) [][]Fields {
		out := make([][]Fields, len(recs))
		for i, r := range recs {
			out[i] = append([]Fields{r.Params()}, r.Children()...)
		}
		return out
	}
	a := view(decodeAll(t, data, Options{}))
	b := view(decodeAll(t, data, Options{}))
	require.Len(t, a, 3)

	addrCmp := cmp.Comparer(func(x, y netip.Addr) bool { return x == y })
	if diff := cmp.Diff(a, b, addrCmp); diff != "" {
		t.Errorf("decoding is not deterministic (-first +second):\n%s", diff)
	}
}

func TestObjectTypeString(t *testing.T) {
	assert.Equal(t, "trace", ObjectTrace.String())
	assert.Equal(t, "cycle-def", ObjectCycleDef.String())
	assert.Equal(t, "type(0x0c)", ObjectType(0x0c).String())
}
