package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// CachedClient 在Client之上缓存不可变的链上对象（区块头），
// 其余调用原样透传。已落链的区块头不会变化，可长期缓存。
type CachedClient struct {
	Client

	headers *bigcache.BigCache
}

// NewCachedClient 包装inner并启用区块头缓存
func NewCachedClient(inner Client, ttl time.Duration) (*CachedClient, error) {
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, fmt.Errorf("header cache: %w", err)
	}
	return &CachedClient{Client: inner, headers: cache}, nil
}

func (c *CachedClient) cachedHeader(key string) *types.Header {
	raw, err := c.headers.Get(key)
	if err != nil {
		return nil
	}
	var header types.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil
	}
	return &header
}

func (c *CachedClient) storeHeader(header *types.Header) {
	raw, err := json.Marshal(header)
	if err != nil {
		return
	}
	_ = c.headers.Set(header.Hash.String(), raw)
	_ = c.headers.Set(fmt.Sprintf("n:%d", uint64(header.Number)), raw)
}

func (c *CachedClient) GetHeader(ctx context.Context, hash types.Hash) (*types.Header, error) {
	if header := c.cachedHeader(hash.String()); header != nil {
		return header, nil
	}
	header, err := c.Client.GetHeader(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.storeHeader(header)
	return header, nil
}

func (c *CachedClient) GetHeaderByNumber(ctx context.Context, number types.Uint64) (*types.Header, error) {
	if header := c.cachedHeader(fmt.Sprintf("n:%d", uint64(number))); header != nil {
		return header, nil
	}
	header, err := c.Client.GetHeaderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	c.storeHeader(header)
	return header, nil
}
