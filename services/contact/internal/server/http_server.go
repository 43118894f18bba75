package server

import (
	"net/http"
	"time"
)

const (
	defaultReadTimeout = 15 * time.Second
	idleTimeout        = 60 * time.Second
	writeMargin        = 5 * time.Second
)

// Timeouts are the bounds one submission can spend before its acknowledgment
// is written: reading the request, then each sink attempt in turn.
type Timeouts struct {
	Read    time.Duration
	SMTP    time.Duration
	Webhook time.Duration
	Store   time.Duration
	// Alert is the total the failure alerter may add across all sinks.
	Alert time.Duration
}

// WriteTimeout covers the whole handler. net/http starts the write deadline
// once the request headers are read, so the body read counts against it.
func (t Timeouts) WriteTimeout() time.Duration {
	return t.read() + t.SMTP + t.Webhook + t.Store + t.Alert + writeMargin
}

func (t Timeouts) read() time.Duration {
	if t.Read <= 0 {
		return defaultReadTimeout
	}
	return t.Read
}

// NewHTTPServer builds the listener config for handler.
func NewHTTPServer(addr string, handler http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  t.read(),
		WriteTimeout: t.WriteTimeout(),
		IdleTimeout:  idleTimeout,
	}
}
