package logger_test

import (
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/fileupload/meta"
	"github.com/rise-and-shine/fileupload/observability/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     logger.Config
		wantErr bool
	}{
		{name: "disabled", cfg: logger.Config{Disable: true}},
		{name: "json", cfg: logger.Config{Level: "info", Encoding: "json"}},
		{name: "pretty", cfg: logger.Config{Level: "debug", Encoding: "pretty"}},
		{name: "invalid level", cfg: logger.Config{Level: "verbose", Encoding: "json"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := logger.New(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestLoggerDerivation(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "debug", Encoding: "pretty"})
	require.NoError(t, err)

	ctx := meta.InjectMetaToContext(t.Context(), map[meta.ContextKey]string{
		meta.EntityAlias: "Document",
	})

	child := l.Named("upload").With("attempt", 1).WithContext(ctx)
	require.NotNil(t, child)

	assert.NotPanics(t, func() {
		child.Info("saved")
		child.Warnx(errx.New("disk full", errx.WithCode("UPLOAD_STORAGE_WRITE")))
		child.Errorx(assert.AnError)
	})
}

func TestNop(t *testing.T) {
	l := logger.Nop()
	assert.NotPanics(t, func() {
		l.Debugf("%d", 1)
		l.WithContext(t.Context()).Warn("nothing")
	})
}
