package httpretry

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryAfterParsing(t *testing.T) {
	mkResp := func(value string) *http.Response {
		h := http.Header{}
		if value != "" {
			h.Set("Retry-After", value)
		}
		return &http.Response{Header: h}
	}

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"absent", "", 0},
		{"whole seconds", "2", 2 * time.Second},
		{"fractional seconds", "0.5", 500 * time.Millisecond},
		{"garbage", "soon", 0},
		{"negative", "-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfter(mkResp(tt.value)); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestRetryAfterHTTPDate(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", time.Now().Add(3*time.Second).UTC().Format(http.TimeFormat))
	got := retryAfter(&http.Response{Header: h})
	if got <= 0 || got > 3*time.Second {
		t.Errorf("retryAfter(http-date) = %v, want in (0, 3s]", got)
	}

	// A date in the past means "now", not a negative wait.
	h.Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	if got := retryAfter(&http.Response{Header: h}); got != 0 {
		t.Errorf("retryAfter(past date) = %v, want 0", got)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !isRetryableStatus(code) {
			t.Errorf("isRetryableStatus(%d) = false, want true", code)
		}
	}
	notRetryable := []int{200, 201, 301, 400, 401, 403, 404, 422}
	for _, code := range notRetryable {
		if isRetryableStatus(code) {
			t.Errorf("isRetryableStatus(%d) = true, want false", code)
		}
	}
}
