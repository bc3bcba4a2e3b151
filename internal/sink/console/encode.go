package console

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/warts/pkg/warts"
)

func yamlNode(v any) *yaml.Node {
	switch v := v.(type) {
	case object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range v {
			n.Content = append(n.Content, scalar("!!str", e.Key), yamlNode(e.Value))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v {
			n.Content = append(n.Content, yamlNode(e))
		}
		return n
	case string:
		return scalar("!!str", v)
	case bool:
		return scalar("!!bool", strconv.FormatBool(v))
	case float64:
		return scalar("!!float", strconv.FormatFloat(v, 'f', -1, 64))
	default:
		if u, ok := unsigned(v); ok {
			return scalar("!!int", strconv.FormatUint(u, 10))
		}
		return scalar("!!str", fmt.Sprint(v))
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func unsigned(v any) (uint64, bool) {
	switch v := v.(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		return uint64(v), v >= 0
	}
	return 0, false
}

// protoValue converts a document into the shapes structpb.NewValue accepts.
func protoValue(v any) any {
	switch v := v.(type) {
	case object:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = protoValue(e.Value)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = protoValue(e)
		}
		return out
	case string, bool, float64:
		return v
	default:
		if u, ok := unsigned(v); ok {
			return float64(u)
		}
		return fmt.Sprint(v)
	}
}

// writeText prints a record the way scamper's verbose reader does: a parameter line,
// then one line per hop or reply.
func writeText(w *bufio.Writer, path string, rec warts.Record) error {
	fmt.Fprintf(w, "%s %s\n", rec.Kind(), path)
	switch r := rec.(type) {
	case *warts.Trace:
		fmt.Fprintf(w, "Flags: %s\n", textFields(r.Params()))
		fmt.Fprintf(w, "Path: %s\n", r.Path())
		fmt.Fprintf(w, "Hops recorded: %d\n", len(r.Hops))
		for _, h := range r.Hops {
			line := textFields(h.Params())
			if h.Has(warts.HopICMP) {
				line += " (" + h.ICMPTypeCode().String() + ")"
			}
			fmt.Fprintf(w, "\t%s\n", line)
		}
	case *warts.Ping:
		fmt.Fprintf(w, "Ping Params: %s\n", textFields(r.Params()))
		for i, reply := range r.Replies {
			line := textFields(reply.Params())
			if reply.Has(warts.ReplyICMP) {
				line += " (" + reply.ICMPTypeCode().String() + ")"
			}
			fmt.Fprintf(w, "Reply %d: %s\n", i+1, line)
		}
	default:
		fmt.Fprintf(w, "Params: %s\n", textFields(rec.Params()))
		for _, c := range rec.Children() {
			fmt.Fprintf(w, "\t%s\n", textFields(c))
		}
	}
	// bufio.Writer keeps the first write error
	_, err := w.Write(nil)
	return err
}

func textFields(fs warts.Fields) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Name + "=" + textValue(f.Value)
	}
	return strings.Join(parts, " ")
}

func textValue(v any) string {
	switch v := v.(type) {
	case warts.Timeval:
		return v.String()
	case warts.Address:
		return v.String()
	case []warts.Address:
		parts := make([]string, len(v))
		for i, a := range v {
			parts[i] = a.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []byte:
		return fmt.Sprintf("%x", v)
	case []warts.ICMPExtension:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, "; ") + "]"
	case warts.ICMPTimestamp:
		return fmt.Sprintf("%d/%d/%d", v.Originate, v.Receive, v.Transmit)
	case warts.IPTimestamps:
		return fmt.Sprintf("%v@%s", v.Stamps, textValue(v.Addrs))
	default:
		return fmt.Sprint(v)
	}
}
