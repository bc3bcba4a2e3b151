package warts

import (
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ICMPTypeCode is implemented by layers.ICMPv4TypeCode and layers.ICMPv6TypeCode.
type ICMPTypeCode interface {
	Type() uint8
	Code() uint8
	String() string
}

func icmpTypeCode(f Family, typ, code uint8) ICMPTypeCode {
	if f == FamilyIPv6 {
		return layers.CreateICMPv6TypeCode(typ, code)
	}
	return layers.CreateICMPv4TypeCode(typ, code)
}

func icmpMessageType(f Family, typ uint8) icmp.Type {
	if f == FamilyIPv6 {
		return ipv6.ICMPType(typ)
	}
	return ipv4.ICMPType(typ)
}

// ICMPTypeCode interprets the icmp field for the family of the replying address.
func (h *Hop) ICMPTypeCode() ICMPTypeCode { return icmpTypeCode(h.family(), h.ICMPType, h.ICMPCode) }

// ICMPMessageType returns the ICMP message type for the family of the replying address.
func (h *Hop) ICMPMessageType() icmp.Type { return icmpMessageType(h.family(), h.ICMPType) }

func (r *PingReply) ICMPTypeCode() ICMPTypeCode {
	return icmpTypeCode(r.family(), r.ICMPType, r.ICMPCode)
}

func (r *PingReply) ICMPMessageType() icmp.Type { return icmpMessageType(r.family(), r.ICMPType) }
