package warts

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func v4(s string) Address {
	return Address{Family: FamilyIPv4, Addr: netip.MustParseAddr(s)}
}

func hopAt(ttl uint8, addr string) *Hop {
	h := &Hop{ProbeTTL: ttl}
	h.present.set(int(HopProbeTTL))
	if addr != "" {
		h.Addr = v4(addr)
		h.present.set(int(HopAddr))
	}
	return h
}

func TestTracePath(t *testing.T) {
	const src, dst = "192.0.2.1", "198.51.100.9"

	tests := []struct {
		name string
		hops []*Hop
		want string
	}{
		{"no hops", nil, "192.0.2.1 198.51.100.9"},
		{"reached", []*Hop{hopAt(1, "10.0.0.1"), hopAt(2, dst)}, "192.0.2.1 10.0.0.1 198.51.100.9"},
		{"not reached", []*Hop{hopAt(1, "10.0.0.1"), hopAt(2, "10.0.0.2")}, "192.0.2.1 10.0.0.1 10.0.0.2 198.51.100.9"},
		{"gap collapses", []*Hop{hopAt(1, "10.0.0.1"), hopAt(4, dst)}, "192.0.2.1 10.0.0.1 * 198.51.100.9"},
		{"leading gap", []*Hop{hopAt(3, "10.0.0.3")}, "192.0.2.1 * 10.0.0.3 198.51.100.9"},
		{
			"first reply per ttl",
			[]*Hop{hopAt(1, "10.0.0.1"), hopAt(1, "10.0.0.11"), hopAt(2, dst)},
			"192.0.2.1 10.0.0.1 198.51.100.9",
		},
		{"unresponsive hop ignored", []*Hop{hopAt(1, "10.0.0.1"), hopAt(2, "")}, "192.0.2.1 10.0.0.1 198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Trace{SrcAddr: v4(src), DstAddr: v4(dst), Hops: tt.hops}
			assert.Equal(t, tt.want, tr.Path())
		})
	}
}

func TestTracePathFirstTTL(t *testing.T) {
	tr := &Trace{SrcAddr: v4("192.0.2.1"), DstAddr: v4("198.51.100.9"), FirstTTL: 3}
	tr.present.set(int(TraceFirstTTL))
	tr.Hops = []*Hop{hopAt(3, "10.0.0.3"), hopAt(4, "198.51.100.9")}
	assert.Equal(t, "192.0.2.1 10.0.0.3 198.51.100.9", tr.Path())
}
