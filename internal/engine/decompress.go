package engine

import (
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// decompressRoundTripper transparently decompresses response bodies for the
// encodings enabled in the configuration. It advertises the enabled
// encodings via Accept-Encoding unless the caller set its own.
type decompressRoundTripper struct {
	next          http.RoundTripper
	gzipEnabled   bool
	brotliEnabled bool
}

func newDecompressRoundTripper(next http.RoundTripper, gzipEnabled, brotliEnabled bool) http.RoundTripper {
	if !gzipEnabled && !brotliEnabled {
		return next
	}
	return &decompressRoundTripper{
		next:          next,
		gzipEnabled:   gzipEnabled,
		brotliEnabled: brotliEnabled,
	}
}

func (d *decompressRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", d.acceptEncoding())
	}

	resp, err := d.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		if !d.gzipEnabled {
			return resp, nil
		}
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		resp.Body = &decodedBody{reader: gr, underlying: resp.Body}
	case "br":
		if !d.brotliEnabled {
			return resp, nil
		}
		resp.Body = &decodedBody{reader: io.NopCloser(brotli.NewReader(resp.Body)), underlying: resp.Body}
	default:
		return resp, nil
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

func (d *decompressRoundTripper) acceptEncoding() string {
	switch {
	case d.gzipEnabled && d.brotliEnabled:
		return "gzip, br"
	case d.brotliEnabled:
		return "br"
	default:
		return "gzip"
	}
}

// decodedBody reads decompressed bytes while keeping the underlying network
// body so Close releases the connection.
type decodedBody struct {
	reader     io.ReadCloser
	underlying io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *decodedBody) Close() error {
	b.reader.Close()
	return b.underlying.Close()
}
