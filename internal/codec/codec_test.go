package codec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studio-go/internal/studio"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	f := studio.FileData{Name: "car.png", MIME: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}}

	url, err := c.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("unexpected data URL prefix: %s", url)
	}

	got, err := c.Decode(c.Strip(url), "image/png")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.Data) != string(f.Data) {
		t.Errorf("round trip data mismatch: got %v, want %v", got.Data, f.Data)
	}
	if got.MIME != "image/png" {
		t.Errorf("mime: got %s, want image/png", got.MIME)
	}
}

func TestEncodeNoData(t *testing.T) {
	c := New()
	if _, err := c.Encode(studio.FileData{}); !errors.Is(err, studio.ErrRead) {
		t.Errorf("expected ErrRead, got %v", err)
	}
}

func TestStrip(t *testing.T) {
	c := New()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"data url", "data:image/png;base64,AAAA", "AAAA"},
		{"bare base64", "AAAA", "AAAA"},
		{"empty", "", ""},
		{"data prefix without marker", "data:image/png", "data:image/png"},
		{"jpeg url", "data:image/jpeg;base64,Zm9v", "Zm9v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Strip(tt.input)
			if got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := c.Strip(got); again != got {
				t.Errorf("Strip not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := New()
	if _, err := c.Decode("not!!valid!!base64", ""); !errors.Is(err, studio.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeDefaultMIME(t *testing.T) {
	c := New()
	f, err := c.Decode("Zm9v", "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.MIME != DefaultMIME {
		t.Errorf("mime: got %s, want %s", f.MIME, DefaultMIME)
	}
}

func TestHandleLifecycle(t *testing.T) {
	c := New()
	f := studio.FileData{Name: "a.png", MIME: "image/png", Data: []byte("abc")}

	h := c.NewHandle(f)
	if !strings.HasPrefix(h, HandleScheme) {
		t.Errorf("handle %q missing scheme %q", h, HandleScheme)
	}

	got, ok := c.Resolve(h)
	if !ok {
		t.Fatal("expected handle to resolve")
	}
	if string(got.Data) != "abc" {
		t.Errorf("resolved data mismatch: %q", got.Data)
	}

	c.Release(h)
	if _, ok := c.Resolve(h); ok {
		t.Error("handle still resolves after release")
	}

	// Double release is a no-op.
	c.Release(h)
	if c.Handles() != 0 {
		t.Errorf("expected 0 live handles, got %d", c.Handles())
	}
}

func TestReleaseAll(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		c.NewHandle(studio.FileData{Data: []byte{byte(i)}})
	}
	if c.Handles() != 3 {
		t.Fatalf("expected 3 live handles, got %d", c.Handles())
	}
	c.ReleaseAll()
	if c.Handles() != 0 {
		t.Errorf("expected 0 live handles after ReleaseAll, got %d", c.Handles())
	}
}

func TestFetchDataURL(t *testing.T) {
	c := New()
	f, err := c.Fetch(context.Background(), "data:image/jpeg;base64,Zm9v")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(f.Data) != "foo" {
		t.Errorf("data: got %q, want foo", f.Data)
	}
	if f.MIME != "image/jpeg" {
		t.Errorf("mime: got %s, want image/jpeg", f.MIME)
	}
}

func TestFetchHandle(t *testing.T) {
	c := New()
	h := c.NewHandle(studio.FileData{MIME: "image/png", Data: []byte("bytes")})

	f, err := c.Fetch(context.Background(), h)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(f.Data) != "bytes" {
		t.Errorf("data: got %q", f.Data)
	}

	c.Release(h)
	if _, err := c.Fetch(context.Background(), h); err == nil {
		t.Error("expected error fetching released handle")
	}
}
