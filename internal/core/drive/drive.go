// Package drive wraps the Google Drive API for two jobs: rendering office
// documents to PDF (import as a Google-native file, export as PDF, delete
// the temp file) and storing/serving finished markdown and PDF artifacts.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/format"
)

type Client struct {
	svc    *drivev3.Service
	logger *zap.Logger
}

// NewClient builds a Drive client from the OAuth client credentials and the
// stored token file. Missing configuration is not an error: it returns an
// unconfigured client whose calls fail with ErrConfigurationMissing, so the
// rest of the service keeps working without Drive.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Warn("Google Drive credentials not set; office conversion and Drive export disabled")
		return &Client{logger: logger}, nil
	}

	tok, err := loadToken(cfg.GoogleTokenPath)
	if err != nil {
		logger.Warn("Google Drive token unavailable; office conversion and Drive export disabled", zap.Error(err))
		return &Client{logger: logger}, nil
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drivev3.DriveFileScope},
	}

	svc, err := drivev3.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

func (c *Client) Configured() bool { return c.svc != nil }

func (c *Client) unconfigured() error {
	return fmt.Errorf("%w: Google Drive OAuth credentials or token not set", core.ErrConfigurationMissing)
}

// ToPDF renders an office document to PDF: upload the original with its
// Google-native import type, export the imported file as PDF, and delete
// the temporary Drive file whether or not the export succeeded.
func (c *Client) ToPDF(ctx context.Context, data []byte, mediaType string) ([]byte, error) {
	if c.svc == nil {
		return nil, c.unconfigured()
	}

	v := format.Classify(mediaType)
	if !v.Supported || v.Route != format.RouteConvert {
		return nil, fmt.Errorf("%w: %s has no PDF conversion", core.ErrUnsupportedFormat, mediaType)
	}

	created, err := c.svc.Files.Create(&drivev3.File{
		Name:     "temp-conversion",
		MimeType: v.Info.GoogleMime,
	}).Media(bytes.NewReader(data), googleapi.ContentType(mediaType)).Fields("id").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: drive import: %v", core.ErrUpstreamCallFailed, err)
	}

	// The imported file is temporary; it must go even when the export fails.
	defer func() {
		if delErr := c.svc.Files.Delete(created.Id).Context(ctx).Do(); delErr != nil {
			c.logger.Warn("Failed to delete temporary Drive file",
				zap.String("file_id", created.Id),
				zap.Error(delErr),
			)
		}
	}()

	resp, err := c.svc.Files.Export(created.Id, "application/pdf").Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("%w: drive pdf export: %v", core.ErrUpstreamCallFailed, err)
	}
	defer resp.Body.Close()

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read exported pdf: %v", core.ErrUpstreamCallFailed, err)
	}
	return pdf, nil
}

// Upload stores content in Drive, optionally inside a folder, and returns
// the file id and its view link.
func (c *Client) Upload(ctx context.Context, data []byte, filename, mimeType, folderID string) (fileID, webViewLink string, err error) {
	if c.svc == nil {
		return "", "", c.unconfigured()
	}

	meta := &drivev3.File{Name: filename, MimeType: mimeType}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	f, err := c.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("%w: drive upload: %v", core.ErrUpstreamCallFailed, err)
	}

	c.logger.Info("Uploaded to Drive", zap.String("file_id", f.Id), zap.String("filename", filename))
	return f.Id, f.WebViewLink, nil
}

// Download streams a Drive file's content with its metadata. The caller
// closes the reader.
func (c *Client) Download(ctx context.Context, fileID string) (rc io.ReadCloser, filename, mimeType string, err error) {
	if c.svc == nil {
		return nil, "", "", c.unconfigured()
	}

	meta, err := c.svc.Files.Get(fileID).Fields("name", "mimeType").Context(ctx).Do()
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: drive metadata: %v", core.ErrUpstreamCallFailed, err)
	}

	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: drive download: %v", core.ErrUpstreamCallFailed, err)
	}
	return resp.Body, meta.Name, meta.MimeType, nil
}

var _ core.OfficeConverter = (*Client)(nil)
