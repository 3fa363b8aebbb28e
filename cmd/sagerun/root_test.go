package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigAppliesDefaults(t *testing.T) {
	conf, err := getConfig(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", conf.Region)
	assert.Equal(t, "info", conf.Log.Level)
	assert.True(t, conf.Log.Color)
}

func TestGetConfigMergesSettings(t *testing.T) {
	conf, err := getConfig(map[string]interface{}{
		"region": "eu-central-1",
		"role":   "arn:aws:iam::123456789012:role/training",
		"log": map[string]interface{}{
			"level": "debug",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", conf.Region)
	assert.Equal(t, "arn:aws:iam::123456789012:role/training", conf.Role)
	assert.Equal(t, "debug", conf.Log.Level)
	assert.True(t, conf.Log.Color, "unset fields keep their defaults")
}

func TestMergeConfigBytesIntoViper(t *testing.T) {
	// v is initialized by the package init.
	require.NoError(t, mergeConfigBytesIntoViper([]byte("region: ap-southeast-2\n")))
	conf, err := getConfig(v.AllSettings())
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", conf.Region)
}
