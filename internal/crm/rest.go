package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Doer executes one platform HTTP request. Providers depend on this
// narrow surface so tests substitute canned transports instead of
// reaching the network.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewRESTClient returns the production Doer: a plain http.Client with a
// conservative timeout. Timeouts beyond this are the transport layer's
// concern, not the providers'.
func NewRESTClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doJSON sends one JSON request and decodes the JSON response into out
// (skipped when out is nil). Platform HTTP statuses are mapped onto the
// provider error taxonomy before any decode happens.
func doJSON(ctx context.Context, doer Doer, platform, method, url string, header http.Header, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", platform, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", platform, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return &PlatformError{Platform: platform, StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := mapStatusError(platform, resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PlatformError{Platform: platform, StatusCode: resp.StatusCode, Message: fmt.Sprintf("undecodable response: %v", err)}
	}
	return nil
}

// mapStatusError converts platform HTTP statuses onto the error
// taxonomy. Bodies of failed responses are kept short; platforms can
// return large HTML error pages.
func mapStatusError(platform string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", platform, ErrAuthenticationFailed)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", platform, ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", platform, ErrRateLimited)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &PlatformError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Message:    string(snippet),
	}
}
