package translation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheKey(t *testing.T) {
	k1 := CacheKey("en", "es", "Hello")
	k2 := CacheKey("en", "es", "Hello")
	assert.Equal(t, k1, k2)

	// 任何一个维度变化都产生新键
	assert.NotEqual(t, k1, CacheKey("en", "de", "Hello"))
	assert.NotEqual(t, k1, CacheKey("auto", "es", "Hello"))
	assert.NotEqual(t, k1, CacheKey("en", "es", "Hello!"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", "v"))
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, c.Size())

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
}

func TestSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k1", "hola"))
	// 同键覆盖
	require.NoError(t, c.Set("k1", "hola mundo"))

	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hola mundo", v)

	_, ok = c.Get("k2")
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestEngineUsesCache(t *testing.T) {
	cache := NewMemoryCache()

	// 第一次运行填充缓存
	session1, _ := newTestSession(t, `<html><body><p>Cached paragraph text</p></body></html>`)
	stub1 := echoTranslator()
	engine1 := NewEngine(session1, stub1, zap.NewNop(), WithRetryBackoff(0), WithCache(cache))
	_, err := engine1.Translate(context.Background(), "es", "en")
	require.NoError(t, err)
	require.Equal(t, 1, stub1.Calls())

	// 第二次运行同样的文本：缓存命中，翻译器一次都不调用
	session2, _ := newTestSession(t, `<html><body><p>Cached paragraph text</p></body></html>`)
	stub2 := echoTranslator()
	engine2 := NewEngine(session2, stub2, zap.NewNop(), WithRetryBackoff(0), WithCache(cache))
	summary, err := engine2.Translate(context.Background(), "es", "en")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 0, stub2.Calls())
	assert.NotNil(t, findText(session2.Page().Root(), "[es] Cached paragraph text"))
}
