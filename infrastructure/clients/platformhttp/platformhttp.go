// Package platformhttp holds the HTTP plumbing shared by the platform clients.
package platformhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"crosspost/domain/apperror"
)

const maxErrorBody = 4 << 10

// NewClient returns a client whose every request is bounded by timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Source is the video body fetched from a signed URL.
type Source struct {
	Body io.ReadCloser
	// Size is -1 when the object store did not report a length.
	Size int64
}

// OpenSource streams the bytes behind signedURL.
func OpenSource(ctx context.Context, client *http.Client, platform, signedURL string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &apperror.VendorError{Platform: platform, Op: "fetch source video", StatusCode: resp.StatusCode, Message: ReadBody(resp.Body)}
	}
	return &Source{Body: resp.Body, Size: resp.ContentLength}, nil
}

// ReadBody returns at most 4KiB of r as trimmed text.
func ReadBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.ToValidUTF8(strings.TrimSpace(string(b)), "")
}

// Success reports a 2xx status.
func Success(status int) bool {
	return status >= 200 && status <= 299
}

// JSONRequest builds a request with a JSON body.
func JSONRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	return req, nil
}

// Do sends req and decodes a JSON response into out. The raw status is
// returned with any decode error so callers can map vendor failures.
func Do(client *http.Client, req *http.Request, out interface{}) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

// Truncate caps vendor text that ends up in logs or error messages. The
// result is valid UTF-8 and never splits a multi-byte character.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
