package console

import (
	"encoding/hex"
	"fmt"

	"firestige.xyz/warts/pkg/warts"
)

type kv struct {
	Key   string
	Value any
}

// object keeps keys in insertion order, which for record fields is flag bit order.
type object []kv

func fieldsObject(fs warts.Fields) object {
	out := make(object, len(fs))
	for i, f := range fs {
		out[i] = kv{f.Name, plain(f.Value)}
	}
	return out
}

// document is the structured form shared by the json, yaml and pb formats. Hops and
// replies carrying an icmp field also get the name of the ICMP message.
func document(path string, rec warts.Record) object {
	doc := object{
		{"file", path},
		{"kind", rec.Kind().String()},
		{"params", fieldsObject(rec.Params())},
	}

	switch r := rec.(type) {
	case *warts.Trace:
		hops := make([]any, len(r.Hops))
		for i, h := range r.Hops {
			o := fieldsObject(h.Params())
			if h.Has(warts.HopICMP) {
				o = append(o, kv{"icmp_message", fmt.Sprint(h.ICMPMessageType())})
			}
			hops[i] = o
		}
		doc = append(doc, kv{"path", r.Path()}, kv{"hops", hops})
	case *warts.Ping:
		replies := make([]any, len(r.Replies))
		for i, reply := range r.Replies {
			o := fieldsObject(reply.Params())
			if reply.Has(warts.ReplyICMP) {
				o = append(o, kv{"icmp_message", fmt.Sprint(reply.ICMPMessageType())})
			}
			replies[i] = o
		}
		doc = append(doc, kv{"replies", replies})
	default:
		children := make([]any, 0, len(rec.Children()))
		for _, c := range rec.Children() {
			children = append(children, fieldsObject(c))
		}
		doc = append(doc, kv{"children", children})
	}
	return doc
}

// plain reduces decoded values to strings, numbers, booleans, lists and objects.
func plain(v any) any {
	switch v := v.(type) {
	case uint8, uint16, uint32, uint64, int, bool, string, float64:
		return v
	case warts.Timeval:
		return v.Seconds()
	case warts.Address:
		return v.String()
	case []warts.Address:
		out := make([]any, len(v))
		for i, a := range v {
			out[i] = a.String()
		}
		return out
	case []byte:
		return hex.EncodeToString(v)
	case []warts.ICMPExtension:
		out := make([]any, len(v))
		for i, e := range v {
			ext := object{{"class", e.Class}, {"type", e.Type}}
			if e.IsMPLS() {
				labels := make([]any, len(e.MPLS))
				for j, l := range e.MPLS {
					labels[j] = object{{"label", l.Label}, {"exp", l.Exp}, {"s", l.S}, {"ttl", l.TTL}}
				}
				ext = append(ext, kv{"mpls", labels})
			} else {
				ext = append(ext, kv{"data", hex.EncodeToString(e.Data)})
			}
			out[i] = ext
		}
		return out
	case warts.ICMPTimestamp:
		return object{{"originate", v.Originate}, {"receive", v.Receive}, {"transmit", v.Transmit}}
	case warts.IPTimestamps:
		stamps := make([]any, len(v.Stamps))
		for i, s := range v.Stamps {
			stamps[i] = s
		}
		return object{{"stamps", stamps}, {"addrs", plain(v.Addrs)}}
	default:
		return fmt.Sprint(v)
	}
}
