package rpc

import (
	"context"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

const defaultIterBatchSize = 100

// CellIter 按游标分页遍历索引检索结果，非并发安全
type CellIter struct {
	client    Client
	key       *SearchKey
	order     Order
	batchSize types.Uint32
	predicate func(*IndexerCell) bool

	cursor    string
	buffer    []IndexerCell
	offset    int
	exhausted bool
}

// IterOption 迭代器可选配置
type IterOption func(*CellIter)

// WithBatchSize 设置单页拉取数量
func WithBatchSize(size uint32) IterOption {
	return func(it *CellIter) {
		if size > 0 {
			it.batchSize = types.Uint32(size)
		}
	}
}

// WithPredicate 设置客户端过滤条件，不满足的单元被跳过
func WithPredicate(predicate func(*IndexerCell) bool) IterOption {
	return func(it *CellIter) {
		it.predicate = predicate
	}
}

// WithOrder 设置遍历顺序，缺省为升序
func WithOrder(order Order) IterOption {
	return func(it *CellIter) {
		it.order = order
	}
}

// NewCellIter 创建存活单元迭代器
func NewCellIter(client Client, key *SearchKey, opts ...IterOption) *CellIter {
	it := &CellIter{
		client:    client,
		key:       key,
		order:     OrderAsc,
		batchSize: defaultIterBatchSize,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Next 返回下一个满足条件的单元，遍历结束时返回(nil, nil)
func (it *CellIter) Next(ctx context.Context) (*IndexerCell, error) {
	for {
		if it.offset < len(it.buffer) {
			cell := it.buffer[it.offset]
			it.offset++
			if it.predicate != nil && !it.predicate(&cell) {
				continue
			}
			return &cell, nil
		}
		if it.exhausted {
			return nil, nil
		}
		page, err := it.client.GetCells(ctx, it.key, it.order, it.batchSize, it.cursor)
		if err != nil {
			return nil, err
		}
		if len(page.Objects) == 0 {
			it.exhausted = true
			return nil, nil
		}
		// 索引服务允许返回不足batchSize的中间页，只有空页或空游标才是遍历终点
		if page.LastCursor == "" {
			it.exhausted = true
		}
		it.cursor = page.LastCursor
		it.buffer = page.Objects
		it.offset = 0
	}
}

// Collect 收集至多limit个满足条件的单元，limit为0表示不设上限
func (it *CellIter) Collect(ctx context.Context, limit int) ([]IndexerCell, error) {
	var cells []IndexerCell
	for limit == 0 || len(cells) < limit {
		cell, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if cell == nil {
			break
		}
		cells = append(cells, *cell)
	}
	return cells, nil
}
