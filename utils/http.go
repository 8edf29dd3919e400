package utils

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the client used for every upstream call. Only dialing
// and the wait for response headers are bounded; a relayed body may stream
// for as long as the client keeps reading.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = timeout
	transport.TLSHandshakeTimeout = timeout

	return &http.Client{Transport: transport}
}

// NoRedirect returns a copy of client that hands back the first redirect
// response instead of following it.
func NoRedirect(client *http.Client) *http.Client {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}
