package envutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedGetters(t *testing.T) {
	t.Setenv("CF_TEST_INT", " 12 ")
	t.Setenv("CF_TEST_BAD_INT", "twelve")
	t.Setenv("CF_TEST_FLOAT", "0.25")
	t.Setenv("CF_TEST_BOOL", "yes")
	t.Setenv("CF_TEST_DUR", "750ms")
	t.Setenv("CF_TEST_SECS", "3")
	t.Setenv("CF_TEST_LIST", "a, b,,c")

	assert.Equal(t, 12, Int("CF_TEST_INT", 1))
	assert.Equal(t, 1, Int("CF_TEST_BAD_INT", 1))
	assert.Equal(t, 0.25, Float("CF_TEST_FLOAT", 0))
	assert.True(t, Bool("CF_TEST_BOOL", false))
	assert.True(t, Bool("CF_TEST_UNSET_BOOL", true))
	assert.Equal(t, 750*time.Millisecond, Duration("CF_TEST_DUR", time.Second))
	assert.Equal(t, 3*time.Second, Duration("CF_TEST_SECS", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, List("CF_TEST_LIST", nil))
	assert.Equal(t, "fallback", String("CF_TEST_UNSET", "fallback"))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CF_DOTENV_NEW=from-file\nCF_DOTENV_SET=from-file\n"), 0o600))
	t.Setenv("CF_DOTENV_SET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("CF_DOTENV_NEW") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-file", os.Getenv("CF_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("CF_DOTENV_SET"))
}
