package pipeline

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"trackbot/internal/catalog"
	"trackbot/internal/provider"
	"trackbot/pkg/utils"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// download saves an image into dir as name plus an extension derived from
// the response content type. It returns the path and the content type.
func (p *Pipeline) download(ctx context.Context, url, dir, name string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create cover request: %w", err)
	}

	resp, err := provider.Do(p.HTTPClient, "cover", req)
	if err != nil {
		return "", "", err
	}

	contentType := resp.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(contentType)
	ext, ok := imageExtensions[strings.ToLower(mt)]
	if !ok {
		resp.Body.Close()
		return "", "", fmt.Errorf("cover %s has unexpected content type %q: %w", url, contentType, catalog.ErrUnavailable)
	}

	path := filepath.Join(dir, name+ext)
	if _, err := utils.SaveStream(resp.Body, path); err != nil {
		return "", "", fmt.Errorf("%w: %w", catalog.ErrUnavailable, err)
	}
	return path, mt, nil
}
