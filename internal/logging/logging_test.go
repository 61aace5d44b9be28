package logging

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{" WARN ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"trace", log.TraceLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	logger := New("error", false)
	assert.Equal(t, log.ErrorLevel, logger.Level)
	assert.IsType(t, &log.IOWriter{}, logger.Writer)

	console := New("debug", true)
	assert.IsType(t, &log.ConsoleWriter{}, console.Writer)
}
