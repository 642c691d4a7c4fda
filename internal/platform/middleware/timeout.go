package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// timeoutWriter serializes the handler goroutine and the timeout path onto
// one response. Once the 504 is written, later handler writes are dropped.
type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
	wrote    bool
}

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return len(b), nil
	}
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// writeTimeout claims the response for the 504. It reports false when the
// handler already wrote, in which case that response stands.
func (w *timeoutWriter) writeTimeout() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wrote {
		return false
	}
	w.timedOut = true
	w.ResponseWriter.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.ResponseWriter.WriteHeader(http.StatusGatewayTimeout)
	w.ResponseWriter.Write([]byte(`{"error":"request processing exceeded the allowed time limit"}` + "\n"))
	return true
}

// RequestTimeout sets a context deadline on each incoming request. When the
// deadline passes before the handler completes, a 504 Gateway Timeout is
// returned and anything the handler writes afterwards is discarded. Handlers
// that need more time can derive their own context with a longer deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			tw := &timeoutWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = tw

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
					tw.writeTimeout()
					return nil
				}
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					tw.writeTimeout()
					return nil
				}
				// Client disconnect or other cancellation.
				return ctx.Err()
			}
		}
	}
}
