package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	l := New("json", &buf)
	l.Info().Str("master", "127.0.0.1:27000").Msg("Master query succeeded")
	assert.Contains(t, buf.String(), `"master":"127.0.0.1:27000"`)
	assert.Contains(t, buf.String(), `"level":"info"`)

	buf.Reset()
	l = New("console", &buf)
	l.Warn().Msg("hello")
	assert.Contains(t, buf.String(), "WRN")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestOpenOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, openOutput("stdout"))
	assert.Equal(t, os.Stderr, openOutput("stderr"))

	path := filepath.Join(t.TempDir(), "masterstat.log")
	w := openOutput(path)
	f, ok := w.(*os.File)
	require.True(t, ok)
	t.Cleanup(func() { _ = f.Close() })
	assert.FileExists(t, path)

	// missing directory falls back to stderr
	assert.Equal(t, os.Stderr, openOutput(filepath.Join(t.TempDir(), "nope", "x.log")))
}

func TestSetupLevel(t *testing.T) {
	old := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(old) })

	Setup(Config{Level: "debug", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Setup(Config{Level: "bogus", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
