package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Davincible/chatkit-go/internal/retry"
	"github.com/Davincible/chatkit-go/internal/transport"
)

// postJSON issues a JSON POST carrying the given headers. The context is
// attached to the request so cancellation releases the connection and any
// in-flight body reads.
func postJSON(ctx context.Context, client *http.Client, url string, headers http.Header, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	return client.Do(req)
}

// readErrorBody drains a failed response's body for error classification,
// decompressing gzip/brotli encodings when present.
func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()

	reader, err := transport.DecompressReader(resp)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(reader, 8*1024))
	if err != nil {
		return ""
	}
	return string(data)
}

// attemptError classifies a non-200 response for the retry policy. Client
// errors other than 429 are permanent: more attempts cannot fix a rejected
// request.
func attemptError(provider, op string, resp *http.Response) error {
	status := resp.StatusCode
	err := classifyStatus(provider, op, status, readErrorBody(resp))
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
