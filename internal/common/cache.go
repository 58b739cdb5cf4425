package common

import (
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	CacheKeyFilterOptions = "filter_options"

	cacheKeyUserByAccessTokenPrefix = "user_by_access_token:"
)

// Cache is the in-process cache shared by the services. Entries use the default expiration unless
// Set is given one.
type Cache struct {
	items *cache.Cache
}

func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	return &Cache{items: cache.New(expirationTime, cleanupTime)}
}

func (c *Cache) Set(key string, value any, expiration ...time.Duration) {
	d := cache.DefaultExpiration
	if len(expiration) > 0 {
		d = expiration[0]
	}
	c.items.Set(key, value, d)
}

func (c *Cache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

// Delete evicts every given key. Missing keys are ignored.
func (c *Cache) Delete(keys ...string) {
	for _, key := range keys {
		c.items.Delete(key)
	}
}

func (c *Cache) Flush() {
	c.items.Flush()
}

// Len counts the entries held, including expired ones not yet cleaned up.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// CacheKeyUserByAccessToken keys a user lookup by the hash of its access token.
func CacheKeyUserByAccessToken(hash []byte) string {
	return cacheKeyUserByAccessTokenPrefix + hex.EncodeToString(hash)
}
