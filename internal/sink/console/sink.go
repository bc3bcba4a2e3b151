// Package console renders decoded records to a writer.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"firestige.xyz/warts/pkg/warts"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatPB writes length-delimited google.protobuf.Struct messages.
	FormatPB Format = "pb"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML, FormatPB:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be text/json/yaml/pb)", s)
	}
}

// Binary reports whether the format is unfit for a terminal.
func (f Format) Binary() bool { return f == FormatPB }

type Sink struct {
	w      *bufio.Writer
	format Format
	yaml   *yaml.Encoder
	json   protojson.MarshalOptions
}

func NewSink(w io.Writer, format Format) (*Sink, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	s := &Sink{
		w:      bufio.NewWriter(w),
		format: format,
	}
	if format == FormatYAML {
		s.yaml = yaml.NewEncoder(s.w)
		s.yaml.SetIndent(2)
	}
	return s, nil
}

// Send renders one record read from path.
func (s *Sink) Send(path string, rec warts.Record) error {
	switch s.format {
	case FormatText:
		return writeText(s.w, path, rec)
	case FormatYAML:
		return s.yaml.Encode(yamlNode(document(path, rec)))
	}

	msg, err := structpb.NewStruct(protoValue(document(path, rec)).(map[string]any))
	if err != nil {
		return fmt.Errorf("failed to build record message: %w", err)
	}
	if s.format == FormatPB {
		_, err = protodelim.MarshalTo(s.w, msg)
		return err
	}
	b, err := s.json.Marshal(msg)
	if err != nil {
		return err
	}
	s.w.Write(b)
	return s.w.WriteByte('\n')
}

func (s *Sink) Close() error {
	if s.yaml != nil {
		if err := s.yaml.Close(); err != nil {
			return err
		}
	}
	return s.w.Flush()
}
