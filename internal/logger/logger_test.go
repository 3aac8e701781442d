package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orderservice/internal/config"
)

func TestBuild_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		encoding string
		want     zapcore.Level
	}{
		{name: "json debug", level: "debug", encoding: "json", want: zapcore.DebugLevel},
		{name: "console warn", level: "WARN", encoding: "console", want: zapcore.WarnLevel},
		{name: "unknown level falls back to info", level: "loud", encoding: "json", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Build(config.Observability{
				ServiceName: "order-service",
				Environment: "test",
				LogLevel:    tt.level,
				LogEncoding: tt.encoding,
			})
			require.NoError(t, err)
			require.NotNil(t, logger)

			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}
