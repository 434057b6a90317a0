// SPDX-License-Identifier: MIT
package transport

import (
	"orbit/internal/log"
)

// LoggingTransport implements the Transport interface by logging messages.
// Events are logged at info level and frames at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	msg, ok := data.(Message)
	if !ok {
		log.Debugf("Transport: %T: %+v", data, data)
		return nil
	}

	switch msg.Type {
	case TypeFrame:
		if msg.Frame != nil {
			log.Debugf("Transport: frame %d mode=%s bands=%v", msg.Frame.Seq, msg.Frame.Mode, msg.Frame.Bands)
		}
	case TypeAnalysisFailed:
		log.Warnf("Transport: %s %s: %s", msg.Type, msg.TrackID, msg.Error)
	default:
		log.Infof("Transport: %s %s", msg.Type, msg.TrackID)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
