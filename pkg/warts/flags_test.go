package warts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagBytes(t *testing.T) {
	assert.Equal(t, []byte{0x00}, flagBytes())
	assert.Equal(t, []byte{0x41}, flagBytes(0, 6))
	assert.Equal(t, []byte{0x81, 0x01}, flagBytes(0, 7))
	assert.Equal(t, []byte{0x80, 0x80, 0x08}, flagBytes(17))
}

func TestReadFlagBits(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		positions []int
		params    bool
	}{
		{"empty", []byte{0x00}, nil, false},
		{"first byte", []byte{0x05}, []int{0, 2}, true},
		{"continued", []byte{0x81, 0x02}, []int{0, 8}, true},
		{"continued with empty tail", []byte{0x83, 0x00}, []int{0, 1}, true},
		{"all zero continued", []byte{0x80, 0x00}, nil, true},
		{"third byte", []byte{0x80, 0x80, 0x40}, []int{20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestState(tt.data, Options{})
			positions, params, err := readFlagBits(st.r)
			require.NoError(t, err)
			assert.Equal(t, tt.positions, positions)
			assert.Equal(t, tt.params, params)
			assert.Equal(t, int64(len(tt.data)), st.r.off)
		})
	}
}

func TestReadFlagBitsContinuationTruncated(t *testing.T) {
	st := newTestState([]byte{0x81}, Options{})
	_, _, err := readFlagBits(st.r)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestDecodeFlagsNamesFollowBitOrder(t *testing.T) {
	fields := (&wire{}).u32(42).u8(3).u16(33435).bytes()
	data := (&wire{}).params(fields, int(TraceListID), int(TraceStopReason), int(TraceDstPort)).bytes()

	st := newTestState(data, Options{})
	var tr Trace
	set, err := decodeFlags(st, traceSchema, &tr)
	require.NoError(t, err)

	assert.Equal(t, []string{"listid", "stopreas", "dstport"}, traceSchema.names(set))
	assert.Equal(t, uint32(42), tr.ListID)
	assert.Equal(t, uint8(3), tr.StopReason)
	assert.Equal(t, uint16(33435), tr.DstPort)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, int64(len(data)), st.r.off)
}

func TestDecodeFlagsParamsFollowBitOrder(t *testing.T) {
	fields := (&wire{}).str("warts test").str("mon.example").bytes()
	data := (&wire{}).params(fields, int(ListDescription), int(ListMonitor)).bytes()

	st := newTestState(data, Options{})
	var l List
	set, err := decodeFlags(st, listSchema, &l)
	require.NoError(t, err)
	l.present = set

	assert.Equal(t, Fields{
		{Name: "description", Value: "warts test"},
		{Name: "monitor", Value: "mon.example"},
	}, l.Params())
	assert.True(t, l.Has(ListMonitor))
}

func TestDecodeFlagsNoFields(t *testing.T) {
	st := newTestState([]byte{0x00, 0xff}, Options{})
	var h Hop
	set, err := decodeFlags(st, hopSchema, &h)
	require.NoError(t, err)
	assert.Zero(t, set)
	assert.Equal(t, int64(1), st.r.off, "no parameter length follows an empty flag byte")
}

func TestDecodeFlagsUnknownFlag(t *testing.T) {
	data := (&wire{}).params([]byte{0x01}, len(hopSchema)).bytes()
	st := newTestState(data, Options{})

	var h Hop
	_, err := decodeFlags(st, hopSchema, &h)
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestDecodeFlagsParamLength(t *testing.T) {
	// paramlen claims two spare bytes after the single u8 field
	data := (&wire{}).params([]byte{0x07, 0xaa, 0xbb}, int(HopProbeTTL)).u8(0x99).bytes()

	t.Run("lenient skips", func(t *testing.T) {
		st := newTestState(data, Options{})
		var h Hop
		_, err := decodeFlags(st, hopSchema, &h)
		require.NoError(t, err)
		assert.Equal(t, uint8(7), h.ProbeTTL)

		next, err := st.r.u8()
		require.NoError(t, err)
		assert.Equal(t, uint8(0x99), next)
	})

	t.Run("strict fails", func(t *testing.T) {
		st := newTestState(data, Options{StrictParamLength: true})
		var h Hop
		_, err := decodeFlags(st, hopSchema, &h)
		assert.ErrorIs(t, err, ErrSchemaLengthMismatch)
	})

	t.Run("over read fails", func(t *testing.T) {
		short := (&wire{}).u8(flagBytes(int(HopRTT))[0]).u16(2).u32(1000).bytes()
		st := newTestState(short, Options{})
		var h Hop
		_, err := decodeFlags(st, hopSchema, &h)
		assert.ErrorIs(t, err, ErrSchemaLengthMismatch)
	})
}

func TestDecodeFlagsFieldTruncated(t *testing.T) {
	data := (&wire{}).u8(flagBytes(int(HopRTT))[0]).u16(4).u8(0, 1).bytes()
	st := newTestState(data, Options{})

	var h Hop
	_, err := decodeFlags(st, hopSchema, &h)
	assert.ErrorIs(t, err, ErrTruncatedInput)
	assert.Contains(t, err.Error(), "rtt")
}

func TestFieldsLookup(t *testing.T) {
	f := Fields{{Name: "a", Value: 1}, {Name: "b", Value: "x"}}

	v, ok := f.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = f.Get("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, f.Names())
}
