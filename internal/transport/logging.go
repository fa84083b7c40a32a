// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync/atomic"

	applog "specstream/internal/log"
)

// LoggingTransport writes every frame to the debug log. It stands in for the
// WebSocket transport when no listener is configured.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data as JSON, or with %+v if it does not marshal.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)
	jsonData, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("LOG_TRANSPORT: Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: %s", jsonData)
	return nil
}

// Sent returns the number of frames passed to Send.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
