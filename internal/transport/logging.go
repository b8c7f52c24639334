// SPDX-License-Identifier: MIT
package transport

import (
	"audioreact/internal/analysis"
	"audioreact/internal/log"
)

// LoggingTransport writes every snapshot to the debug log.
type LoggingTransport struct {
	logger *log.Logger
}

// NewLoggingTransport creates a new LoggingTransport.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: log.New("transport")}
	lt.logger.Infof("Using LoggingTransport")
	return lt
}

// Send logs data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case analysis.Snapshot:
		lt.logger.Debugf("seq=%d volume=%.3f level=%.1f bands=%.2f",
			v.Seq, v.Volume, v.Level, v.Bands)
	default:
		lt.logger.Debugf("Received (%T): %+v", data, data)
	}
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("Close called")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
