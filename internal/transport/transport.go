// Package transport builds the shared HTTP client used by all provider
// clients: a tuned http.Transport suited to long-lived streaming responses,
// a structured-logging round tripper, and response body decompression for
// the non-streaming calls that may arrive gzip- or brotli-encoded.
package transport

import (
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// NewHTTPClient returns an http.Client without a global timeout; each call
// carries its own context. A global timeout would race with streaming
// responses that can legitimately take minutes.
func NewHTTPClient(logger *slog.Logger) *http.Client {
	base := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Providers can take a while to start streaming when the prompt
		// carries many tool results.
		ResponseHeaderTimeout: 180 * time.Second,
	}
	return &http.Client{
		Transport: &loggingRoundTripper{next: base, logger: logger},
	}
}

type loggingRoundTripper struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (rt *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := rt.next.RoundTrip(req)

	duration := time.Since(start)
	if err != nil {
		rt.logger.Debug("HTTP Request failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", duration,
			"error", err,
		)
		return nil, err
	}

	rt.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", duration,
	)
	return resp, nil
}

// DecompressReader wraps the response body in the decoder matching its
// Content-Encoding. Identity and unknown encodings pass through unchanged.
func DecompressReader(resp *http.Response) (io.Reader, error) {
	var bodyReader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		bodyReader = gzipReader
	case "br":
		bodyReader = brotli.NewReader(resp.Body)
	}

	return bodyReader, nil
}
