package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/warts/internal/config"
	"firestige.xyz/warts/internal/log"
	"firestige.xyz/warts/internal/metrics"
	"firestige.xyz/warts/internal/source/file"
	"firestige.xyz/warts/pkg/warts"
)

// fileResult summarizes one decoded capture.
type fileResult struct {
	Path        string
	Compression file.Compression
	Stats       warts.Stats
	Records     map[warts.ObjectType]int
	Malformed   int
	Err         error
}

// decodeFile decodes every record of path and hands it to fn. With skipMalformed set,
// errors confined to one object are logged and counted; anything else stops the file.
func decodeFile(ctx context.Context, path string, dc config.DecoderConfig, fn func(warts.Record) error) (res fileResult) {
	res = fileResult{Path: path, Records: make(map[warts.ObjectType]int)}
	logger := log.GetLogger().WithField("file", path)

	src, err := file.Open(path)
	if err != nil {
		res.Err = err
		metrics.FilesTotal.WithLabelValues("error").Inc()
		return res
	}
	defer src.Close()
	res.Compression = src.Compression()

	opts := dc.Options()
	opts.Logger = logger
	dec := warts.NewDecoder(src, opts)
	defer func() {
		res.Stats = dec.Stats()
		metrics.ObserveStats(res.Stats, string(res.Compression))
	}()

	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			metrics.FilesTotal.WithLabelValues("ok").Inc()
			return res
		}
		if err != nil {
			metrics.ObserveError(err)
			if dc.SkipMalformed && dec.Err() == nil {
				res.Malformed++
				logger.WithError(err).Warn("skipping malformed object")
				continue
			}
			res.Err = err
			metrics.FilesTotal.WithLabelValues("error").Inc()
			return res
		}

		res.Records[rec.Kind()]++
		metrics.ObserveRecord(rec)
		if fn != nil {
			if err := fn(rec); err != nil {
				res.Err = fmt.Errorf("failed to write record: %w", err)
				return res
			}
		}
	}
}
