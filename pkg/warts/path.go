package warts

import "strings"

// Path renders the forward path of a traceroute as "SRC HOP ... DST", one entry per
// probed TTL. The first responding address at a TTL is used; TTLs without a reply
// become "*" and adjacent stars collapse into one. DST is left off when the last
// hop already is the destination.
func (t *Trace) Path() string {
	byTTL := make(map[uint8]string)
	var maxTTL uint8
	for _, h := range t.Hops {
		if !h.Has(HopProbeTTL) || !h.Addr.IsValid() {
			continue
		}
		if _, ok := byTTL[h.ProbeTTL]; !ok {
			byTTL[h.ProbeTTL] = h.Addr.String()
		}
		if h.ProbeTTL > maxTTL {
			maxTTL = h.ProbeTTL
		}
	}

	first := uint8(1)
	if t.Has(TraceFirstTTL) && t.FirstTTL > 0 {
		first = t.FirstTTL
	}

	var sb strings.Builder
	sb.WriteString(t.SrcAddr.String())
	last, star := "", false
	for ttl := int(first); ttl <= int(maxTTL); ttl++ {
		addr, ok := byTTL[uint8(ttl)]
		if !ok {
			star = true
			continue
		}
		if star {
			sb.WriteString(" *")
			star = false
		}
		sb.WriteString(" ")
		sb.WriteString(addr)
		last = addr
	}
	if star {
		sb.WriteString(" *")
	}
	if dst := t.DstAddr.String(); star || last != dst {
		sb.WriteString(" ")
		sb.WriteString(dst)
	}
	return sb.String()
}
