// Package codec converts between raw file bytes, portable base64 data
// URLs, and transient process-local display handles.
package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"studio-go/internal/studio"
)

// DefaultMIME is assumed when a payload carries no mime hint.
const DefaultMIME = "image/png"

// Codec implements studio.Codec. The zero value is not usable; create
// instances with New.
type Codec struct {
	registry *Registry
	httpc    *http.Client
}

// New creates a Codec with its own handle registry.
func New() *Codec {
	return &Codec{
		registry: NewRegistry(),
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

var _ studio.Codec = (*Codec)(nil)

// Encode returns the file as a data URL. The whole payload is encoded
// before returning; there is no partial result.
func (c *Codec) Encode(f studio.FileData) (string, error) {
	if f.Data == nil {
		return "", fmt.Errorf("%w: no file data", studio.ErrRead)
	}
	mime := f.MIME
	if mime == "" {
		mime = DefaultMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(f.Data), nil
}

// Strip removes a data-URL prefix if present, else returns the input
// unchanged. Idempotent: Strip(Strip(x)) == Strip(x).
func (c *Codec) Strip(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	i := strings.Index(s, ";base64,")
	if i < 0 {
		return s
	}
	return s[i+len(";base64,"):]
}

// Decode reconstructs a file from raw base64 plus an optional mime
// hint. Malformed base64 yields an error wrapping studio.ErrDecode.
func (c *Codec) Decode(raw, mimeHint string) (studio.FileData, error) {
	data, err := base64.StdEncoding.DecodeString(c.Strip(raw))
	if err != nil {
		return studio.FileData{}, fmt.Errorf("%w: %v", studio.ErrDecode, err)
	}
	mime := mimeHint
	if mime == "" {
		mime = DefaultMIME
	}
	return studio.FileData{MIME: mime, Data: data}, nil
}

// NewHandle mints a display handle for f. See Registry.
func (c *Codec) NewHandle(f studio.FileData) string { return c.registry.New(f) }

// Resolve returns the file behind a live handle.
func (c *Codec) Resolve(handle string) (studio.FileData, bool) { return c.registry.Resolve(handle) }

// Release revokes a handle; unknown handles are a no-op.
func (c *Codec) Release(handle string) { c.registry.Release(handle) }

// ReleaseAll revokes every live handle.
func (c *Codec) ReleaseAll() { c.registry.ReleaseAll() }

// Handles returns the number of live handles. Used to audit the
// create/release balance.
func (c *Codec) Handles() int { return c.registry.Len() }

// Fetch materializes the bytes behind a URL. Data URLs decode locally,
// registry handles resolve without I/O, anything else is dereferenced
// over HTTP. A stale handle from a prior session fails here, which is
// why callers prefer base64 payloads first.
func (c *Codec) Fetch(ctx context.Context, url string) (studio.FileData, error) {
	switch {
	case strings.HasPrefix(url, "data:"):
		mime := mimeOfDataURL(url)
		return c.Decode(url, mime)
	case strings.HasPrefix(url, HandleScheme):
		f, ok := c.registry.Resolve(url)
		if !ok {
			return studio.FileData{}, fmt.Errorf("stale display handle: %s", url)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return studio.FileData{}, fmt.Errorf("fetching asset: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return studio.FileData{}, fmt.Errorf("fetching asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return studio.FileData{}, fmt.Errorf("fetching asset: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return studio.FileData{}, fmt.Errorf("reading asset body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = DefaultMIME
	}
	return studio.FileData{MIME: mime, Data: data}, nil
}

// Probe decodes the image header to extract dimensions and format.
func (c *Codec) Probe(f studio.FileData) (studio.AssetMeta, error) {
	img, err := imaging.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return studio.AssetMeta{}, fmt.Errorf("%w: %v", studio.ErrDecode, err)
	}
	bounds := img.Bounds()
	return studio.AssetMeta{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: formatOfMIME(f.MIME),
	}, nil
}

func mimeOfDataURL(s string) string {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		return rest[:i]
	}
	return ""
}

func formatOfMIME(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 && i+1 < len(mime) {
		return mime[i+1:]
	}
	return "png"
}
