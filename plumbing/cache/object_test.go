package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestObjectCacheGetMiss(t *testing.T) {
	o := NewObjectLRU(DefaultMaxSize)
	assert.Nil(t, o.Get(plumbing.NewHash("1111111111111111111111111111111111111111")))
}

func TestObjectCacheAddAndGet(t *testing.T) {
	o := NewObjectLRU(DefaultMaxSize)
	obj := plumbing.NewMemoryObject(plumbing.BlobObject, []byte("hello"))

	o.Add(obj)

	got := o.Get(obj.ID())
	require.NotNil(t, got)
	assert.Equal(t, obj.ID(), got.ID())
}

func TestObjectCacheEvictsOverBudget(t *testing.T) {
	o := NewObjectLRU(10) // bytes

	first := plumbing.NewMemoryObject(plumbing.BlobObject, []byte("0123456789"))
	second := plumbing.NewMemoryObject(plumbing.BlobObject, []byte("abcdefghij"))

	o.Add(first)
	o.Add(second)

	assert.Nil(t, o.Get(first.ID()), "oldest entry should have been evicted over budget")
	assert.NotNil(t, o.Get(second.ID()))
}

func TestObjectCacheClear(t *testing.T) {
	o := NewObjectLRU(DefaultMaxSize)
	obj := plumbing.NewMemoryObject(plumbing.BlobObject, []byte("hello"))
	o.Add(obj)

	o.Clear()

	assert.Nil(t, o.Get(obj.ID()))
}
