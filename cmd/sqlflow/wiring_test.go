package main

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParseOverridesJSONForm(t *testing.T) {
	out, err := parseOverrides(`{"env_name": "staging", "limit": "10"}`)
	assert.NoError(t, err)
	assert.Equal(t, "staging", out["env_name"])
	assert.Equal(t, "10", out["limit"])
}

func TestParseOverridesKVForm(t *testing.T) {
	out, err := parseOverrides("env_name=staging, limit = 10")
	assert.NoError(t, err)
	assert.Equal(t, "staging", out["env_name"])
	assert.Equal(t, "10", out["limit"])
}

func TestParseOverridesEmptyIsEmptyMap(t *testing.T) {
	out, err := parseOverrides("")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(out))
}

func TestParseOverridesRejectsMalformedPair(t *testing.T) {
	_, err := parseOverrides("env_name")
	assert.Error(t, err)
}
