// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil performs API requests and classifies their failures
// into the harvester's error kinds. There is no retry: a failed request
// fails the search unit, which the next run attempts again.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// StatusError reports a response other than 200 OK.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Unwrap makes a StatusError match ErrTransientFetch.
func (e *StatusError) Unwrap() error { return types.ErrTransientFetch }

// Get issues a GET with header and returns the body of a 200 response.
//
// Transport failures and non-200 statuses are ErrTransientFetch; a timeout
// additionally matches ErrRequestTimeout. Cancellation of ctx itself is
// returned as ctx.Err() so callers can stop the run.
func Get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", types.ErrTransientFetch, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	return body, nil
}

func classify(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w: GET %s: %v", types.ErrTransientFetch, types.ErrRequestTimeout, url, err)
	}
	return fmt.Errorf("%w: GET %s: %v", types.ErrTransientFetch, url, err)
}
