package transport

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func respWith(encoding string, body []byte) *http.Response {
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	if encoding != "" {
		resp.Header.Set("Content-Encoding", encoding)
	}
	return resp
}

func TestDecompressReaderIdentity(t *testing.T) {
	reader, err := DecompressReader(respWith("", []byte("plain")))
	require.NoError(t, err)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))
}

func TestDecompressReaderGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("gzipped payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	reader, err := DecompressReader(respWith("gzip", buf.Bytes()))
	require.NoError(t, err)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "gzipped payload", string(data))
}

func TestDecompressReaderBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("brotli payload"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	reader, err := DecompressReader(respWith("br", buf.Bytes()))
	require.NoError(t, err)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "brotli payload", string(data))
}

func TestDecompressReaderBadGzip(t *testing.T) {
	_, err := DecompressReader(respWith("gzip", []byte("not gzip")))
	assert.Error(t, err)
}

func TestNewHTTPClientRoundTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewHTTPClient(testLogger())
	assert.Zero(t, client.Timeout)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}
