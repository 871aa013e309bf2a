package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters_FallBackToDefaults(t *testing.T) {
	assert.Equal(t, "fallback", GetString("TRUSTBOND_TEST_UNSET_STRING", "fallback"))
	assert.Equal(t, 42, GetInt("TRUSTBOND_TEST_UNSET_INT", 42))
	assert.True(t, GetBool("TRUSTBOND_TEST_UNSET_BOOL", true))
	assert.Equal(t, 3*time.Second, GetDuration("TRUSTBOND_TEST_UNSET_DURATION", 3*time.Second))
}

func TestGetters_ReadEnvironment(t *testing.T) {
	t.Setenv("TRUSTBOND_TEST_STRING", "value")
	t.Setenv("TRUSTBOND_TEST_INT", "7")
	t.Setenv("TRUSTBOND_TEST_INT64", "11155111")
	t.Setenv("TRUSTBOND_TEST_BOOL", "false")
	t.Setenv("TRUSTBOND_TEST_DURATION", "1m30s")

	assert.Equal(t, "value", GetString("TRUSTBOND_TEST_STRING", ""))
	assert.Equal(t, 7, GetInt("TRUSTBOND_TEST_INT", 0))
	assert.Equal(t, int64(11155111), GetInt64("TRUSTBOND_TEST_INT64", 1))
	assert.False(t, GetBool("TRUSTBOND_TEST_BOOL", true))
	assert.Equal(t, 90*time.Second, GetDuration("TRUSTBOND_TEST_DURATION", 0))
}

func TestGetInt_PanicsOnGarbage(t *testing.T) {
	t.Setenv("TRUSTBOND_TEST_BAD_INT", "seven")

	assert.Panics(t, func() { GetInt("TRUSTBOND_TEST_BAD_INT", 0) })
}
