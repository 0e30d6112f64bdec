package capture

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"browser-pilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeShooter struct {
	data []byte
	err  error
}

func (f *fakeShooter) Screenshot(context.Context) ([]byte, error) {
	return f.data, f.err
}

func newCapturer(dir string, shooter *fakeShooter) *Capturer {
	return New(Params{
		Config: &config.Config{
			AgentConfig: &config.AgentConfig{ScreenshotDir: dir},
		},
		Shooter: shooter,
		Logger:  zap.NewNop(),
	})
}

func TestCapturePassesThroughBuffer(t *testing.T) {
	shooter := &fakeShooter{data: []byte{0xff, 0xd8, 0xff}}

	data, err := newCapturer(t.TempDir(), shooter).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shooter.data, data)
}

func TestStoreWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	c := newCapturer(dir, &fakeShooter{})

	path, err := c.Store([]byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), content)
}

func TestStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "shots")
	c := newCapturer(dir, &fakeShooter{})

	path, err := c.Store([]byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
