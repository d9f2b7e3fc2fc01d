package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	content := "# SPB Exchange whitelist\nAAPL\nmsft\n\nGE\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	u, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, u.Len())
	assert.True(t, u.Contains("AAPL"))
	assert.True(t, u.Contains("MSFT"), "tickers are upper-cased")
	assert.True(t, u.Contains("GE"))
	assert.False(t, u.Contains("TSLA"))
}

func TestLoad_EmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# only comments\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFromTickers(t *testing.T) {
	u := FromTickers("aaa", "BBB")
	assert.True(t, u.Contains("AAA"))
	assert.True(t, u.Contains("BBB"))
	assert.Equal(t, 2, u.Len())
}
