package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient is a small retrying JSON client shared by the gateway
// implementations. Retries cover transient transport errors and 5xx
// responses; 4xx responses are mapped to typed gateway errors immediately.
type HTTPClient struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func NewHTTPClient(timeout time.Duration, retries int, backoff time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}, retries: retries, backoff: backoff}
}

// DoJSON issues the request and decodes a JSON response into out.
// gatewayName tags any resulting *Error for callers that dispatch on kind.
func (c *HTTPClient) DoJSON(ctx context.Context, gatewayName, method, url string, headers map[string]string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return NewError(gatewayName, KindTimeout, ctx.Err())
			}
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return NewError(gatewayName, KindTimeout, err)
			}
			lastErr = NewError(gatewayName, KindUnavailable, err)
		} else {
			func() {
				defer resp.Body.Close()
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					if out == nil {
						lastErr = nil
						return
					}
					if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
						lastErr = NewError(gatewayName, KindMalformedResponse, err)
						return
					}
					lastErr = nil
				case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
					lastErr = NewError(gatewayName, KindUnauthorized, errors.New(resp.Status))
				case resp.StatusCode == http.StatusTooManyRequests:
					lastErr = NewError(gatewayName, KindRateLimited, errors.New(resp.Status))
				default:
					b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
					lastErr = NewError(gatewayName, KindUnavailable, errors.New(resp.Status+": "+string(b)))
				}
			}()
			if lastErr == nil {
				return nil
			}
			var ge *Error
			if errors.As(lastErr, &ge) && (ge.Kind == KindUnauthorized || ge.Kind == KindMalformedResponse) {
				return lastErr
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return NewError(gatewayName, KindTimeout, ctx.Err())
			}
		}
	}
	return lastErr
}
