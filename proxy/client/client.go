package client

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// StreamClient is the downstream side of a proxy session. It buffers
// response headers until the first WriteHeader or Write, and remembers
// whether the status line has gone out.
type StreamClient struct {
	ID              string
	Request         *http.Request
	StartedAt       time.Time
	ResponseHeaders http.Header
	writer          http.ResponseWriter
	flusher         http.Flusher
	headersSent     atomic.Bool
}

func NewStreamClient(w http.ResponseWriter, r *http.Request) *StreamClient {
	var flusher http.Flusher
	if f, ok := w.(http.Flusher); ok {
		flusher = f
	}

	return &StreamClient{
		ID:              uuid.New().String(),
		Request:         r,
		StartedAt:       time.Now(),
		ResponseHeaders: make(http.Header),
		writer:          w,
		flusher:         flusher,
	}
}

func (sc *StreamClient) RemoteAddr() string {
	return sc.Request.RemoteAddr
}

func (sc *StreamClient) UserAgent() string {
	if ua := sc.Request.Header.Get("User-Agent"); ua != "" {
		return ua
	}
	return "unknown"
}

// HeadersSent reports whether the status line has been written.
func (sc *StreamClient) HeadersSent() bool {
	return sc.headersSent.Load()
}

func (sc *StreamClient) Header() http.Header {
	if sc.HeadersSent() {
		return sc.writer.Header()
	}
	return sc.ResponseHeaders
}

func (sc *StreamClient) WriteHeader(statusCode int) {
	if !sc.headersSent.CompareAndSwap(false, true) {
		return
	}

	for key, values := range sc.ResponseHeaders {
		for _, value := range values {
			sc.writer.Header().Add(key, value)
		}
	}
	sc.writer.WriteHeader(statusCode)
}

func (sc *StreamClient) Write(data []byte) (int, error) {
	if !sc.HeadersSent() {
		sc.WriteHeader(http.StatusOK)
	}
	return sc.writer.Write(data)
}

func (sc *StreamClient) Flush() {
	if sc.flusher != nil {
		sc.flusher.Flush()
	}
}

// Fail reports err to the client when the status line is still unsent.
// It returns false once streaming has begun, leaving the wire untouched.
func (sc *StreamClient) Fail(statusCode int, message string) bool {
	if sc.HeadersSent() {
		return false
	}
	sc.ResponseHeaders = make(http.Header)
	sc.ResponseHeaders.Set("Content-Type", "text/plain; charset=utf-8")
	sc.ResponseHeaders.Set("X-Content-Type-Options", "nosniff")
	sc.WriteHeader(statusCode)
	_, _ = sc.writer.Write([]byte(message + "\n"))
	return true
}
