package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/doc2md/doc2md/internal/core"
)

// Gemini implements core.AIBackend on the Google generative API. A zero API
// key leaves the backend unconfigured; every call then fails with
// ErrConfigurationMissing instead of crashing at startup.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set; AI conversion disabled")
		return &Gemini{logger: logger}, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Gemini{client: cl, logger: logger}, nil
}

func (g *Gemini) Configured() bool { return g.client != nil }

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) model(name string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(name)
	m.SetTemperature(0.1)
	m.SetTopP(0.95)
	m.SetTopK(40)
	m.SetMaxOutputTokens(65536)
	return m
}

// ConvertFiles sends all prepared files plus one instruction in a single
// request. With a non-nil onChunk the call streams and every text fragment
// is forwarded in arrival order; the returned text is the concatenation of
// those fragments with wrapping code fences stripped.
func (g *Gemini) ConvertFiles(ctx context.Context, files []core.PreparedFile, model string, onChunk core.ChunkFunc) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrConfigurationMissing)
	}

	prompt := singleFilePrompt
	if len(files) > 1 {
		prompt = multiFilePrompt
	}

	parts := make([]genai.Part, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, genai.Blob{MIMEType: f.MediaType, Data: f.Bytes})
	}
	parts = append(parts, genai.Text(prompt))

	g.logger.Info("Gemini convert request",
		zap.String("model", model),
		zap.Int("files", len(files)),
		zap.Bool("streaming", onChunk != nil),
	)

	return g.generate(ctx, model, parts, onChunk)
}

// Summarize runs the same round-trip for raw markdown text.
func (g *Gemini) Summarize(ctx context.Context, text, model string, onChunk core.ChunkFunc) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrConfigurationMissing)
	}

	g.logger.Info("Gemini summarize request", zap.String("model", model), zap.Int("chars", len(text)))

	parts := []genai.Part{genai.Text(summarizePrompt + "\n\n" + text)}
	return g.generate(ctx, model, parts, onChunk)
}

// GenerateTitle asks the model for a short file name describing the
// markdown. Only a sample of the content is sent to keep the request small.
func (g *Gemini) GenerateTitle(ctx context.Context, markdown, model string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrConfigurationMissing)
	}

	sample := markdown
	if len(sample) > 5000 {
		sample = sample[:5000]
	}

	parts := []genai.Part{genai.Text(titlePrompt + "\n\nContent:\n" + sample + "\n\nFile name:")}
	raw, err := g.generate(ctx, model, parts, nil)
	if err != nil {
		return "", err
	}
	return sanitizeTitle(raw), nil
}

func (g *Gemini) generate(ctx context.Context, model string, parts []genai.Part, onChunk core.ChunkFunc) (string, error) {
	m := g.model(model)

	if onChunk == nil {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			return "", fmt.Errorf("%w: gemini model %s: %v", core.ErrUpstreamCallFailed, model, err)
		}
		text := responseText(resp)
		if text == "" {
			return "", fmt.Errorf("%w: gemini model %s returned an empty response", core.ErrUpstreamCallFailed, model)
		}
		return StripFences(text), nil
	}

	iter := m.GenerateContentStream(ctx, parts...)
	var b strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: gemini model %s: %v", core.ErrUpstreamCallFailed, model, err)
		}
		if chunk := responseText(resp); chunk != "" {
			b.WriteString(chunk)
			onChunk(chunk)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: gemini model %s returned an empty response", core.ErrUpstreamCallFailed, model)
	}
	return StripFences(b.String()), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:markdown)?\n?")
	fenceClose = regexp.MustCompile("\n?```$")
)

// StripFences removes a wrapping markdown code fence the model sometimes
// adds despite instructions. Inner fences stay untouched.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var titleInvalid = regexp.MustCompile(`[^\p{L}\p{N}-]`)
var dashRuns = regexp.MustCompile(`-+`)

func sanitizeTitle(raw string) string {
	t := strings.TrimSpace(strings.ReplaceAll(raw, "```", ""))
	t = strings.ReplaceAll(t, "\n", "")
	if len(t) > 50 {
		t = t[:50]
	}
	t = strings.ReplaceAll(t, " ", "-")
	t = titleInvalid.ReplaceAllString(t, "")
	t = dashRuns.ReplaceAllString(t, "-")
	t = strings.Trim(t, "-")
	if t == "" {
		return "document"
	}
	return t
}

var _ core.AIBackend = (*Gemini)(nil)
