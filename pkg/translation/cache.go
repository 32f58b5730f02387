package translation

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CacheKey 生成缓存键：源语言、目标语言与原文共同决定一条译文
func CacheKey(sourceLang, targetLang, text string) string {
	h := md5.Sum([]byte(sourceLang + "|" + targetLang + "|" + text))
	return hex.EncodeToString(h[:])
}

// MemoryCache 进程内翻译缓存
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]string)}
}

// Get 获取缓存译文
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Set 写入缓存译文
func (c *MemoryCache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

// Clear 清空缓存
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]string)
	return nil
}

// Size 当前条目数
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SQLiteCache 基于sqlite的持久化翻译缓存，跨运行复用译文
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache 打开（必要时创建）缓存数据库
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapError(err, ErrCodeConfig, "create cache directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, WrapError(err, ErrCodeConfig, "open cache database")
	}

	schema := `CREATE TABLE IF NOT EXISTS translations (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, WrapError(err, ErrCodeConfig, "initialize cache schema")
	}

	return &SQLiteCache{db: db}, nil
}

// Get 获取缓存译文
func (c *SQLiteCache) Get(key string) (string, bool) {
	var value string
	err := c.db.QueryRow("SELECT value FROM translations WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set 写入缓存译文
func (c *SQLiteCache) Set(key, value string) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO translations (key, value, created_at) VALUES (?, ?, ?)",
		key, value, time.Now().Unix())
	if err != nil {
		return WrapError(err, ErrCodeUnknown, "write cache entry")
	}
	return nil
}

// Clear 清空缓存
func (c *SQLiteCache) Clear() error {
	_, err := c.db.Exec("DELETE FROM translations")
	if err != nil {
		return WrapError(err, ErrCodeUnknown, "clear cache")
	}
	return nil
}

// Close 关闭数据库
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
