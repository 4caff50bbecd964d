// Package format maps media types to a handling route. The table is static
// so behavior is reviewable and testable by enumeration; there is no content
// sniffing.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doc2md/doc2md/internal/core"
)

// Route says how a file reaches the AI backend.
type Route string

const (
	// RouteDirect passes the bytes through unchanged.
	RouteDirect Route = "direct"
	// RouteConvert renders the office document to PDF first.
	RouteConvert Route = "convert"
	// RouteEncode transcodes the media into a normalized container first.
	RouteEncode Route = "encode"
)

// Info describes one supported media type.
type Info struct {
	Name string
	Ext  string

	// GoogleMime is the Drive-native type an office document is imported as
	// before the PDF export. Empty outside the convert route.
	GoogleMime string

	// OutputMime is the container an encode-routed file ends up in.
	// Empty outside the encode route.
	OutputMime string
}

// Verdict is the classification result for one media type.
type Verdict struct {
	Supported bool
	Route     Route
	Info      Info
}

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	googleDoc   = "application/vnd.google-apps.document"
	googleSlide = "application/vnd.google-apps.presentation"
	googleSheet = "application/vnd.google-apps.spreadsheet"

	mimeMp3 = "audio/mpeg"
	mimeMp4 = "video/mp4"
)

var direct = map[string]Info{
	"application/pdf": {Name: "PDF", Ext: ".pdf"},
	"image/png":       {Name: "PNG", Ext: ".png"},
	"image/jpeg":      {Name: "JPEG", Ext: ".jpg"},
	"image/webp":      {Name: "WebP", Ext: ".webp"},
	"image/gif":       {Name: "GIF", Ext: ".gif"},
	"audio/mpeg":      {Name: "MP3", Ext: ".mp3"},
	"audio/mp3":       {Name: "MP3", Ext: ".mp3"},
	"audio/wav":       {Name: "WAV", Ext: ".wav"},
	"video/mp4":       {Name: "MP4", Ext: ".mp4"},
	"text/plain":      {Name: "Text", Ext: ".txt"},
}

var convert = map[string]Info{
	mimePptx:                        {Name: "PowerPoint", Ext: ".pptx", GoogleMime: googleSlide},
	mimeDocx:                        {Name: "Word", Ext: ".docx", GoogleMime: googleDoc},
	mimeXlsx:                        {Name: "Excel", Ext: ".xlsx", GoogleMime: googleSheet},
	"application/vnd.ms-powerpoint": {Name: "PowerPoint (Legacy)", Ext: ".ppt", GoogleMime: googleSlide},
	"application/msword":            {Name: "Word (Legacy)", Ext: ".doc", GoogleMime: googleDoc},
}

var encode = map[string]Info{
	"audio/mp4":    {Name: "M4A", Ext: ".m4a", OutputMime: mimeMp3},
	"audio/aac":    {Name: "AAC", Ext: ".aac", OutputMime: mimeMp3},
	"audio/aacp":   {Name: "AAC+", Ext: ".aac", OutputMime: mimeMp3},
	"audio/opus":   {Name: "Opus", Ext: ".opus", OutputMime: mimeMp3},
	"audio/flac":   {Name: "FLAC", Ext: ".flac", OutputMime: mimeMp3},
	"audio/ogg":    {Name: "OGG", Ext: ".ogg", OutputMime: mimeMp3},
	"audio/x-flac": {Name: "FLAC", Ext: ".flac", OutputMime: mimeMp3},
	"audio/x-aac":  {Name: "AAC", Ext: ".aac", OutputMime: mimeMp3},
	"audio/x-m4a":  {Name: "M4A", Ext: ".m4a", OutputMime: mimeMp3},
	"audio/x-opus": {Name: "Opus", Ext: ".opus", OutputMime: mimeMp3},
	"audio/webm":   {Name: "WebM Audio", Ext: ".weba", OutputMime: mimeMp3},

	"video/x-matroska": {Name: "MKV", Ext: ".mkv", OutputMime: mimeMp4},
	"video/3gpp":       {Name: "3GP", Ext: ".3gp", OutputMime: mimeMp4},
	"video/webm":       {Name: "WebM", Ext: ".webm", OutputMime: mimeMp4},
	"video/x-m4v":      {Name: "M4V", Ext: ".m4v", OutputMime: mimeMp4},
	"video/avi":        {Name: "AVI", Ext: ".avi", OutputMime: mimeMp4},
	"video/x-msvideo":  {Name: "AVI", Ext: ".avi", OutputMime: mimeMp4},
}

// Classify returns the handling verdict for a media type. It is a pure
// total function over the tables above.
func Classify(mediaType string) Verdict {
	if info, ok := direct[mediaType]; ok {
		return Verdict{Supported: true, Route: RouteDirect, Info: info}
	}
	if info, ok := convert[mediaType]; ok {
		return Verdict{Supported: true, Route: RouteConvert, Info: info}
	}
	if info, ok := encode[mediaType]; ok {
		return Verdict{Supported: true, Route: RouteEncode, Info: info}
	}
	return Verdict{}
}

// Supported reports whether the media type appears in any table.
func Supported(mediaType string) bool {
	return Classify(mediaType).Supported
}

// IsMedia reports whether the type is audio or video, which gets the larger
// upload ceiling.
func IsMedia(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/") || strings.HasPrefix(mediaType, "video/")
}

// Unsupported builds the error surfaced for a media type outside the table.
func Unsupported(name, mediaType string) error {
	return fmt.Errorf("%w: %s (%s)", core.ErrUnsupportedFormat, name, mediaType)
}

// Format is one row of the supported-format listing returned by the API.
type Format struct {
	MediaType       string `json:"mimeType"`
	Extension       string `json:"extension"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	RequiresDrive   bool   `json:"requiresDriveApi,omitempty"`
	RequiresEncoder bool   `json:"requiresEncoder,omitempty"`
}

// List enumerates every supported media type with its route.
func List() []Format {
	var out []Format
	for mt, info := range direct {
		out = append(out, Format{MediaType: mt, Extension: info.Ext, Name: info.Name, Type: string(RouteDirect)})
	}
	for mt, info := range convert {
		out = append(out, Format{MediaType: mt, Extension: info.Ext, Name: info.Name, Type: string(RouteConvert), RequiresDrive: true})
	}
	for mt, info := range encode {
		out = append(out, Format{MediaType: mt, Extension: info.Ext, Name: info.Name, Type: string(RouteEncode), RequiresEncoder: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaType < out[j].MediaType })
	return out
}
