package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// doRequest executes the HTTP request behind a circuit breaker. There is no
// retry loop: a failed call is reported to the caller, which degrades it to
// an unavailable reading.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := buildRequest()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, errServerError
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}

// round1 rounds to one decimal, the precision both upstreams use for
// accumulated precipitation.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
