package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMaxImageBytes = 8 << 20

// ImageFetcher downloads message attachments and encodes them as data URIs
// for vision-capable models.
type ImageFetcher struct {
	http     *http.Client
	maxBytes int64
}

// NewImageFetcher creates a fetcher. A nil client gets a 30s-timeout default;
// maxBytes <= 0 means the default cap.
func NewImageFetcher(client *http.Client, maxBytes int64) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &ImageFetcher{http: client, maxBytes: maxBytes}
}

// DataURI downloads the image at imageURL and returns it as a base64 data
// URI. The MIME type comes from the response header, falling back to content
// sniffing.
func (f *ImageFetcher) DataURI(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("fetch image: status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("fetch image: exceeds %d byte limit", f.maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("fetch image: unexpected content type %q", mimeType)
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
