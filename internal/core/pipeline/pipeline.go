// Package pipeline normalizes uploaded files for AI ingestion: classify
// each file's media type, route it through office conversion or media
// transcoding when needed, and collect the results in input order.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/encoder"
	"github.com/doc2md/doc2md/internal/core/format"
)

// Encoder is the transcoding stage. Satisfied by *encoder.Encoder.
type Encoder interface {
	Encode(ctx context.Context, data []byte, mediaType string, onProgress core.ProgressFunc) (encoder.Result, error)
}

// File is one raw input to prepare.
type File struct {
	Bytes     []byte
	MediaType string
	Name      string
}

type Pipeline struct {
	office core.OfficeConverter
	enc    Encoder
	logger *zap.Logger
}

func New(office core.OfficeConverter, enc Encoder, logger *zap.Logger) *Pipeline {
	return &Pipeline{office: office, enc: enc, logger: logger}
}

// Prepare routes every file independently and returns the prepared files in
// the same order as the input. The first failure aborts the whole batch:
// downstream prompts build one combined document, and a partial document is
// worse than none. Errors carry the failing file's name.
func (p *Pipeline) Prepare(ctx context.Context, files []File, onProgress core.ProgressFunc) ([]core.PreparedFile, error) {
	out := make([]core.PreparedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			prepared, err := p.prepareOne(gctx, f, onProgress)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			out[i] = prepared
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) prepareOne(ctx context.Context, f File, onProgress core.ProgressFunc) (core.PreparedFile, error) {
	v := format.Classify(f.MediaType)
	if !v.Supported {
		return core.PreparedFile{}, format.Unsupported(f.Name, f.MediaType)
	}

	switch v.Route {
	case format.RouteDirect:
		return core.PreparedFile{Bytes: f.Bytes, MediaType: f.MediaType, Name: f.Name}, nil

	case format.RouteConvert:
		p.logger.Info("Converting office document to PDF",
			zap.String("name", f.Name),
			zap.String("media_type", f.MediaType),
		)
		pdf, err := p.office.ToPDF(ctx, f.Bytes, f.MediaType)
		if err != nil {
			return core.PreparedFile{}, err
		}
		return core.PreparedFile{Bytes: pdf, MediaType: "application/pdf", Name: f.Name}, nil

	case format.RouteEncode:
		p.logger.Info("Transcoding media",
			zap.String("name", f.Name),
			zap.String("media_type", f.MediaType),
			zap.Int("bytes", len(f.Bytes)),
		)
		res, err := p.enc.Encode(ctx, f.Bytes, f.MediaType, onProgress)
		if err != nil {
			return core.PreparedFile{}, err
		}
		return core.PreparedFile{Bytes: res.Bytes, MediaType: res.MediaType, Name: f.Name}, nil
	}

	return core.PreparedFile{}, format.Unsupported(f.Name, f.MediaType)
}
