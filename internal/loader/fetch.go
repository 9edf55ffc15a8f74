// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// maxFetchSize bounds remote scripts and manifests.
const maxFetchSize = 4 << 20

// fetch GETs url, retrying network errors and 5xx/429 responses with
// exponential backoff. Other non-200 responses fail immediately.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	backoff := retry.WithMaxRetries(l.opts.HTTPRetries, retry.NewExponential(l.opts.RetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, l.opts.HTTPTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return err //nolint:wrapcheck // wrapped below
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("unexpected status %s", resp.Status))
		default:
			return fmt.Errorf("unexpected status %s", resp.Status)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(data) > maxFetchSize {
			return fmt.Errorf("response exceeds %d bytes", maxFetchSize)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, oops.Code("FETCH_FAILED").In("loader").
			With("url", url).
			With("retries", l.opts.HTTPRetries).
			Wrap(err)
	}
	return body, nil
}
