package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type retryableErr struct{}

func (retryableErr) Error() string   { return "i/o timeout" }
func (retryableErr) Timeout() bool   { return true }
func (retryableErr) Temporary() bool { return false }

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{Workers: 1})

	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "test", func() error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	d.Close()
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	defer d.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "test", func() error {
		if calls.Add(1) < 3 {
			return retryableErr{}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, expected 3", got)
	}
	if d.ErrorCount() != 0 {
		t.Errorf("ErrorCount = %d, expected 0", d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{
		Workers:      1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})

	var calls atomic.Int32
	if err := d.Enqueue(context.Background(), "test", func() error {
		calls.Add(1)
		return errors.New("bad request")
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, expected 1", got)
	}
	if d.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, expected 1", d.ErrorCount())
	}
}

func TestDispatcherClosedQueue(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "test", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, expected ErrQueueClosed", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := fmt.Errorf("telegram: Post https://api.telegram.org/bot123456:AAHsecretToken-x_y/sendMessage failed")
	got := sanitizeErrorMessage(err)
	if got != "telegram: Post https://api.telegram.org/bot<redacted>/sendMessage failed" {
		t.Errorf("token not redacted: %q", got)
	}
	if sanitizeErrorMessage(nil) != "" {
		t.Error("nil error should produce empty string")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"timeout", retryableErr{}, "timeout"},
		{"api 500", &tele.Error{Code: 502}, "http_5xx"},
		{"api 400", &tele.Error{Code: 403}, "http_4xx"},
		{"flood", tele.FloodError{Error: &tele.Error{Code: 429}, RetryAfter: 5}, "http_4xx"},
		{"suffix code", fmt.Errorf("telegram: bad gateway (502)"), "http_5xx"},
		{"plain", errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Errorf("%s: classifyError = %q, expected %q", tc.name, got, tc.want)
		}
	}
}

func TestHTTPStatusFromError(t *testing.T) {
	if got := httpStatusFromError(&tele.Error{Code: http.StatusBadRequest}); got != http.StatusBadRequest {
		t.Errorf("tele.Error: got %d", got)
	}
	if got := httpStatusFromError(fmt.Errorf("something failed (404)")); got != 404 {
		t.Errorf("suffix parse: got %d", got)
	}
	if got := httpStatusFromError(errors.New("no code here")); got != 0 {
		t.Errorf("plain: got %d", got)
	}
}
