package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter routes the standard library log package (and libraries that
// write to it) into slog. A leading "[component] " prefix becomes the
// component attribute.
type BridgeWriter struct {
	component string
}

// NewBridgeWriter returns a writer tagging untagged lines with component.
func NewBridgeWriter(component string) *BridgeWriter {
	return &BridgeWriter{component: component}
}

func (bw *BridgeWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return len(p), nil
	}
	msg = stripLogTimestamp(msg)

	comp := bw.component
	if strings.HasPrefix(msg, "[") {
		if i := strings.Index(msg, "] "); i > 0 {
			comp = strings.ToLower(msg[1:i])
			msg = msg[i+2:]
		}
	}
	Logger().Info(msg, slog.String("component", comp))
	return len(p), nil
}

// stripLogTimestamp drops the "2006/01/02 15:04:05 " or "15:04:05 " prefix
// added by the log package defaults.
func stripLogTimestamp(s string) string {
	if len(s) > 20 && s[4] == '/' && s[7] == '/' && s[10] == ' ' && s[13] == ':' && s[19] == ' ' {
		s = s[20:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		s = s[9:]
	}
	return s
}
