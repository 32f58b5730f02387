package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eldoprano/offline-browser-translate/pkg/providers"
)

func TestNewKnownProviders(t *testing.T) {
	for _, name := range Known {
		tr, err := New(name, providers.BaseConfig{})
		require.NoError(t, err, name)
		assert.Equal(t, name, tr.GetName())
	}
}

func TestNewAppliesOverrides(t *testing.T) {
	tr, err := New("ollama", providers.BaseConfig{
		APIEndpoint: "http://10.0.0.2:11434",
		Model:       "qwen2.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", tr.GetName())
}

func TestNewUnknownProviderSuggests(t *testing.T) {
	_, err := New("olama", providers.BaseConfig{})
	require.Error(t, err)
	// 拼写错误给出最接近的候选
	assert.Contains(t, err.Error(), "ollama")
}
