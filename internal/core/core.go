package core

import (
	"context"
)

// PreparedFile is a file normalized for AI ingestion: office documents are
// already PDF, exotic media containers are already mp3/mp4. Owned by the
// single pipeline run that produced it.
type PreparedFile struct {
	Bytes     []byte
	MediaType string
	Name      string
}

// Progress is one tick from a long-running stage. ETASeconds is -1 while
// unknown (percent still 0).
type Progress struct {
	Percent    int
	ETASeconds int
}

// ChunkFunc receives one incremental text fragment from a streaming AI call.
type ChunkFunc func(chunk string)

// ProgressFunc receives throttled progress ticks from the encoder.
type ProgressFunc func(p Progress)

// AIBackend turns prepared files or raw text into markdown. Implementations
// wrap a vendor completion API; when onChunk is non-nil the call streams and
// the returned text equals the concatenation of the delivered chunks with
// any wrapping code fences stripped.
type AIBackend interface {
	ConvertFiles(ctx context.Context, files []PreparedFile, model string, onChunk ChunkFunc) (string, error)
	Summarize(ctx context.Context, text, model string, onChunk ChunkFunc) (string, error)
	GenerateTitle(ctx context.Context, markdown, model string) (string, error)
}

// OfficeConverter renders an office document to PDF via an external
// capability. ToPDF returns ErrConfigurationMissing when the capability is
// not set up.
type OfficeConverter interface {
	Configured() bool
	ToPDF(ctx context.Context, data []byte, mediaType string) ([]byte, error)
}

// ObjectStore is the cloud storage capability used for produced artifacts.
type ObjectStore interface {
	Configured() bool
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (data []byte, contentType string, err error)
	Delete(ctx context.Context, key string) error
}
