package classfile

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey distinguishes the six token kinds sharing one LRU so a
// type-pool index and a field-pool index never collide.
type cacheKey struct {
	kind  byte
	index uint16
}

// CachingScope wraps a caller-supplied MetadataScope with an LRU of the
// last N resolved constant-pool tokens. Decoding a method body commonly
// re-references the same field or method constant across many
// instructions (a loop body reading the same field each iteration);
// this avoids paying the external lookup cost for every one of them.
type CachingScope struct {
	inner MetadataScope
	cache *lru.Cache[cacheKey, interface{}]
}

// NewCachingScope wraps inner with an LRU holding up to size entries.
func NewCachingScope(inner MetadataScope, size int) *CachingScope {
	c, err := lru.New[cacheKey, interface{}](size)
	if err != nil {
		// only returns an error for size <= 0.
		c, _ = lru.New[cacheKey, interface{}](1)
	}
	return &CachingScope{inner: inner, cache: c}
}

const (
	kindType byte = iota
	kindField
	kindMethod
	kindInterfaceMethod
	kindCallSite
	kindConstant
)

func (c *CachingScope) ResolveType(index uint16) (TypeRef, error) {
	key := cacheKey{kindType, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(TypeRef), nil
	}
	v, err := c.inner.ResolveType(index)
	if err != nil {
		return TypeRef{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachingScope) ResolveField(index uint16) (FieldRef, error) {
	key := cacheKey{kindField, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(FieldRef), nil
	}
	v, err := c.inner.ResolveField(index)
	if err != nil {
		return FieldRef{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachingScope) ResolveMethod(index uint16) (MethodRef, error) {
	key := cacheKey{kindMethod, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(MethodRef), nil
	}
	v, err := c.inner.ResolveMethod(index)
	if err != nil {
		return MethodRef{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachingScope) ResolveInterfaceMethod(index uint16) (MethodRef, error) {
	key := cacheKey{kindInterfaceMethod, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(MethodRef), nil
	}
	v, err := c.inner.ResolveInterfaceMethod(index)
	if err != nil {
		return MethodRef{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachingScope) ResolveCallSite(index uint16) (CallSiteRef, error) {
	key := cacheKey{kindCallSite, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(CallSiteRef), nil
	}
	v, err := c.inner.ResolveCallSite(index)
	if err != nil {
		return CallSiteRef{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachingScope) ResolveConstant(index uint16) (Constant, error) {
	key := cacheKey{kindConstant, index}
	if v, ok := c.cache.Get(key); ok {
		return v.(Constant), nil
	}
	v, err := c.inner.ResolveConstant(index)
	if err != nil {
		return Constant{}, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// CommonSuperType is delegated uncached: it takes two already-resolved
// TypeRefs rather than a constant-pool index, so there is nothing to
// key an LRU entry on that's cheaper than the call itself.
func (c *CachingScope) CommonSuperType(a, b TypeRef) TypeRef {
	return c.inner.CommonSuperType(a, b)
}
