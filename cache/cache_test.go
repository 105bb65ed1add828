package cache

import (
	"testing"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/stretchr/testify/assert"
)

func TestNewLocalCache(t *testing.T) {
	cache, err := NewLocalCache(time.Minute)
	assert.NoError(t, err)

	err = cache.Cache.Set("balance-acc1", []byte("1200.5"))
	assert.NoError(t, err)

	data, err := cache.Cache.Get("balance-acc1")
	assert.NoError(t, err)
	assert.Equal(t, "1200.5", string(data))

	assert.NoError(t, cache.Cache.Delete("balance-acc1"))
	_, err = cache.Cache.Get("balance-acc1")
	assert.Equal(t, schema.ErrNotExist, err)

	// deleting a missing key is not an error
	assert.NoError(t, cache.Cache.Delete("balance-acc1"))
}
