package vars

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	info := Info()
	assert.Equal(t, "da15c17", info.CommitShort)
	assert.Equal(t, Name, info.Name)

	Commit = "abc"
	assert.Equal(t, "abc", Info().CommitShort)
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf)
	assert.Contains(t, buf.String(), "name:     masterstat\n")
	assert.Contains(t, buf.String(), "license:  MIT\n")
	assert.Equal(t, "masterstat/"+Version, UserAgent())
}
