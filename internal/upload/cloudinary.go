// Package upload sends item pictures to Cloudinary and hands back their URL.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/metrics"
)

const (
	// DefaultBaseURL is the Cloudinary upload API root
	DefaultBaseURL = "https://api.cloudinary.com/v1_1"
	// DefaultMaxBytes is the largest accepted picture
	DefaultMaxBytes = 10 << 20
	// DefaultFolder groups uploads in the media library
	DefaultFolder = "christmas-list"

	sniffLen = 512
)

var (
	// ErrNotImage is returned for anything that is not an image
	ErrNotImage = errors.New("please select an image file")
	// ErrTooLarge is returned for files above the size ceiling
	ErrTooLarge = errors.New("image is too large")
	// ErrNotConfigured is returned when no cloud name or preset is set
	ErrNotConfigured = errors.New("image uploads are not configured")
)

// File is one picture handed in by a caller
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Config holds the Cloudinary account settings
type Config struct {
	CloudName    string
	UploadPreset string
	Folder       string
	MaxBytes     int64
	BaseURL      string
}

// Uploader posts unsigned uploads to Cloudinary
type Uploader struct {
	cfg     Config
	client  *http.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// New creates an Uploader, filling in defaults. m may be nil.
func New(cfg Config, client *http.Client, logger *logrus.Logger, m *metrics.Metrics) *Uploader {
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Uploader{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// MaxBytes is the size ceiling in effect
func (u *Uploader) MaxBytes() int64 {
	return u.cfg.MaxBytes
}

// Enabled reports whether an account is configured
func (u *Uploader) Enabled() bool {
	return u.cfg.CloudName != "" && u.cfg.UploadPreset != ""
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload checks that f is an image within the size ceiling, stores it under
// <actorID>_<uuid> and returns its secure URL.
func (u *Uploader) Upload(ctx context.Context, actorID string, f File) (string, error) {
	if !u.Enabled() {
		return "", ErrNotConfigured
	}

	data, err := u.read(f)
	if err != nil {
		u.observe("rejected")
		return "", err
	}

	publicID := actorID + "_" + u.newID()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"upload_preset": u.cfg.UploadPreset,
		"cloud_name":    u.cfg.CloudName,
		"folder":        u.cfg.Folder,
		"public_id":     publicID,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write upload field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", fileName(f.Name))
	if err != nil {
		return "", fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(u.cfg.BaseURL, "/"), u.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		u.observe("error")
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	var decoded uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		u.observe("error")
		return "", fmt.Errorf("failed to decode upload response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || decoded.SecureURL == "" {
		u.observe("error")
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", fmt.Errorf("failed to upload image: %s", msg)
	}

	u.observe("ok")
	u.logger.WithFields(logrus.Fields{
		"actor":     actorID,
		"public_id": decoded.PublicID,
		"bytes":     len(data),
	}).Info("Image uploaded")

	return decoded.SecureURL, nil
}

// read enforces the size ceiling and image type. The declared type must be
// image/* and the sniffed content must agree, unless the sniffer only sees
// opaque binary.
func (u *Uploader) read(f File) ([]byte, error) {
	if f.Body == nil {
		return nil, ErrNotImage
	}
	if f.Size > u.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, f.Size, u.cfg.MaxBytes)
	}
	if f.ContentType != "" && !strings.HasPrefix(f.ContentType, "image/") {
		return nil, fmt.Errorf("%w: declared type %s", ErrNotImage, f.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, u.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > u.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, u.cfg.MaxBytes)
	}
	if len(data) == 0 {
		return nil, ErrNotImage
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	sniffed := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
	case sniffed == "application/octet-stream" && strings.HasPrefix(f.ContentType, "image/"):
		// HEIC and similar phone formats are opaque to the sniffer; trust the declared type.
	default:
		return nil, fmt.Errorf("%w: content looks like %s", ErrNotImage, sniffed)
	}
	return data, nil
}

func fileName(name string) string {
	if name == "" {
		return "upload"
	}
	return name
}

func (u *Uploader) observe(outcome string) {
	if u.metrics != nil {
		u.metrics.Uploads.WithLabelValues(outcome).Inc()
	}
}
