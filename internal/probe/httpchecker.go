package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/servermonitor/internal/domain"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "servermonitor/1.0"

	// bodyDrainLimit bounds how much of a response body is read so the
	// connection can be reused.
	bodyDrainLimit = 4 << 10
)

type HTTPOptions struct {
	Timeout      time.Duration
	MaxRedirects int
	Method       string // GET or HEAD
	UserAgent    string
}

type HTTPChecker struct {
	Client    *http.Client
	Method    string
	UserAgent string
}

func NewHTTPChecker(opts HTTPOptions) *HTTPChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects < 0 {
		opts.MaxRedirects = 0
	}
	if opts.Method != http.MethodHead {
		opts.Method = http.MethodGet
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	maxRedirects := opts.MaxRedirects
	return &HTTPChecker{
		Client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		Method:    opts.Method,
		UserAgent: opts.UserAgent,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) Result {
	start := time.Now()
	code, err := h.do(ctx, h.Method, target)
	if err == nil && h.Method == http.MethodHead &&
		(code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = h.do(ctx, http.MethodGet, target)
	}
	latency := time.Since(start)
	if err != nil {
		return Result{Status: domain.Offline(), Latency: latency, Reason: reasonFor(err)}
	}
	return Result{
		Status:     Classify(code),
		StatusCode: code,
		Latency:    latency,
		Reason:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
	}
}

func (h *HTTPChecker) do(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyDrainLimit))
	return resp.StatusCode, nil
}

// Classify maps a received HTTP status code to a target status.
func Classify(code int) domain.Status {
	if code >= 200 && code < 300 {
		return domain.Online()
	}
	return domain.ErrorCode(code)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return err.Error()
}
