// Package metrics implements Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/warts/pkg/warts"
)

var (
	// ObjectsTotal counts objects read from captures by object type
	ObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warts_objects_total",
			Help: "Total number of warts objects read",
		},
		[]string{"type"},
	)

	// RecordsTotal counts decoded measurement records by kind
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warts_records_total",
			Help: "Total number of trace and ping records decoded",
		},
		[]string{"kind"},
	)

	// DecodeErrorsTotal counts decode failures by error class
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warts_decode_errors_total",
			Help: "Total number of decode errors",
		},
		[]string{"error"},
	)

	// BytesReadTotal counts uncompressed capture bytes consumed
	BytesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warts_bytes_read_total",
			Help: "Total number of uncompressed bytes consumed by the decoder",
		},
		[]string{"compression"},
	)

	// RecordChildren measures hops per trace and replies per ping
	RecordChildren = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warts_record_children",
			Help:    "Number of hops or replies per record",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1, 2, 4, ..., 512
		},
		[]string{"kind"},
	)

	// FilesTotal counts processed files by outcome
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warts_files_total",
			Help: "Total number of capture files processed",
		},
		[]string{"result"},
	)
)

var errorClasses = []struct {
	err   error
	label string
}{
	{warts.ErrBadMagic, "bad_magic"},
	{warts.ErrObjectTooLarge, "object_too_large"},
	{warts.ErrTruncatedInput, "truncated"},
	{warts.ErrUnknownFlag, "unknown_flag"},
	{warts.ErrSchemaLengthMismatch, "length_mismatch"},
	{warts.ErrUnresolvedReference, "unresolved_reference"},
	{warts.ErrAddressIDMismatch, "address_id_mismatch"},
	{warts.ErrUnsupportedAddress, "unsupported_address"},
	{warts.ErrUnsupportedExtension, "unsupported_extension"},
	{warts.ErrMalformedTraceEnd, "malformed_trace_end"},
}

// ErrorClass maps a decode error onto a bounded label value.
func ErrorClass(err error) string {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	return "other"
}

// ObserveRecord counts a decoded record.
func ObserveRecord(rec warts.Record) {
	kind := rec.Kind().String()
	RecordsTotal.WithLabelValues(kind).Inc()
	RecordChildren.WithLabelValues(kind).Observe(float64(len(rec.Children())))
}

// ObserveError counts a decode error.
func ObserveError(err error) {
	DecodeErrorsTotal.WithLabelValues(ErrorClass(err)).Inc()
}

// ObserveStats adds the per-file decoder counters once a file is done.
func ObserveStats(stats warts.Stats, compression string) {
	for typ, n := range stats.Objects {
		ObjectsTotal.WithLabelValues(typ.String()).Add(float64(n))
	}
	BytesReadTotal.WithLabelValues(compression).Add(float64(stats.Bytes))
}
