package rpc

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// FakeClient 内存中的节点替身，用于不连接真实节点的构造与测试流程。
// 单元按插入顺序存放，游标为页末下标的十六进制编码。
type FakeClient struct {
	mu sync.Mutex

	cells           []IndexerCell
	headersByHash   map[types.Hash]*types.Header
	headersByNumber map[uint64]*types.Header
	txStatuses      map[types.Hash][]TxStatus
	transactions    map[types.Hash]*types.TransactionView
	tipNumber       uint64
	minFeeRate      uint64
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient 创建空的节点替身，最低费率取链缺省值1000
func NewFakeClient() *FakeClient {
	return &FakeClient{
		headersByHash:   make(map[types.Hash]*types.Header),
		headersByNumber: make(map[uint64]*types.Header),
		txStatuses:      make(map[types.Hash][]TxStatus),
		transactions:    make(map[types.Hash]*types.TransactionView),
		minFeeRate:      1000,
	}
}

// InsertFakeCell 登记一个存活单元
func (c *FakeClient) InsertFakeCell(cell IndexerCell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells = append(c.cells, cell)
}

// InsertFakeHeader 登记一个区块头，按哈希与高度均可查询
func (c *FakeClient) InsertFakeHeader(header types.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := header
	c.headersByHash[header.Hash] = &stored
	c.headersByNumber[uint64(header.Number)] = &stored
	if uint64(header.Number) > c.tipNumber {
		c.tipNumber = uint64(header.Number)
	}
}

// InsertFakeTxStatus 为某交易追加一个状态，轮询时按追加顺序依次返回，
// 最后一个状态此后保持不变
func (c *FakeClient) InsertFakeTxStatus(hash types.Hash, status TxStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txStatuses[hash] = append(c.txStatuses[hash], status)
}

// SetFakeTip 设置最新区块高度
func (c *FakeClient) SetFakeTip(number uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tipNumber = number
}

// SetFakeFeeRate 设置交易池最低费率
func (c *FakeClient) SetFakeFeeRate(feeRate uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minFeeRate = feeRate
}

func (c *FakeClient) GetLiveCell(_ context.Context, outPoint types.OutPoint, withData bool) (*CellWithStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cell := range c.cells {
		if cell.OutPoint == outPoint {
			info := &CellInfo{Output: cell.Output}
			if withData {
				info.Data = &CellData{
					Content: cell.OutputData,
					Hash:    types.CkbHash(cell.OutputData),
				}
			}
			return &CellWithStatus{Cell: info, Status: "live"}, nil
		}
	}
	return &CellWithStatus{Status: "unknown"}, nil
}

// matchScript 按检索方式比较脚本，prefix要求code_hash与hash_type一致且args前缀匹配
func matchScript(target *types.Script, query types.Script, mode SearchMode) bool {
	if target == nil {
		return false
	}
	if target.CodeHash != query.CodeHash || target.HashType != query.HashType {
		return false
	}
	if mode == SearchModePrefix {
		return bytes.HasPrefix(target.Args, query.Args)
	}
	return bytes.Equal(target.Args, query.Args)
}

func matchSearchKey(cell *IndexerCell, key *SearchKey) bool {
	mode := key.ScriptSearchMode
	if mode == "" {
		mode = SearchModePrefix
	}
	primary := &cell.Output.Lock
	secondary := cell.Output.Type
	if key.ScriptType == ScriptTypeType {
		primary = cell.Output.Type
		secondary = &cell.Output.Lock
	}
	if !matchScript(primary, key.Script, mode) {
		return false
	}
	if key.Filter != nil {
		if key.Filter.Script != nil && !matchScript(secondary, *key.Filter.Script, SearchModePrefix) {
			return false
		}
		if key.Filter.OutputData != nil {
			filterMode := SearchModePrefix
			if key.Filter.OutputDataFilterMode != nil {
				filterMode = *key.Filter.OutputDataFilterMode
			}
			if filterMode == SearchModeExact {
				if !bytes.Equal(cell.OutputData, *key.Filter.OutputData) {
					return false
				}
			} else if !bytes.HasPrefix(cell.OutputData, *key.Filter.OutputData) {
				return false
			}
		}
	}
	return true
}

func (c *FakeClient) GetCells(_ context.Context, key *SearchKey, order Order, limit types.Uint32, cursor string) (*LiveCells, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if cursor != "" {
		parsed, err := strconv.ParseUint(strings.TrimPrefix(cursor, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("get_cells: invalid cursor %q", cursor)
		}
		start = int(parsed)
	}

	ordered := c.cells
	if order == OrderDesc {
		ordered = make([]IndexerCell, len(c.cells))
		for i, cell := range c.cells {
			ordered[len(c.cells)-1-i] = cell
		}
	}

	result := &LiveCells{Objects: []IndexerCell{}}
	scanned := start
	for ; scanned < len(ordered) && len(result.Objects) < int(limit); scanned++ {
		cell := ordered[scanned]
		if matchSearchKey(&cell, key) {
			if !key.WithData {
				cell.OutputData = nil
			}
			result.Objects = append(result.Objects, cell)
		}
	}
	result.LastCursor = fmt.Sprintf("0x%x", scanned)
	return result, nil
}

func (c *FakeClient) GetBlock(ctx context.Context, hash types.Hash) (*BlockView, error) {
	header, err := c.GetHeader(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &BlockView{Header: *header}, nil
}

func (c *FakeClient) GetBlockByNumber(ctx context.Context, number types.Uint64) (*BlockView, error) {
	header, err := c.GetHeaderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return &BlockView{Header: *header}, nil
}

func (c *FakeClient) GetBlockHash(ctx context.Context, number types.Uint64) (types.Hash, error) {
	header, err := c.GetHeaderByNumber(ctx, number)
	if err != nil {
		return types.Hash{}, err
	}
	return header.Hash, nil
}

func (c *FakeClient) GetHeader(_ context.Context, hash types.Hash) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	header, ok := c.headersByHash[hash]
	if !ok {
		return nil, fmt.Errorf("get_header %s: %w", hash, ErrNotFound)
	}
	copied := *header
	return &copied, nil
}

func (c *FakeClient) GetHeaderByNumber(_ context.Context, number types.Uint64) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	header, ok := c.headersByNumber[uint64(number)]
	if !ok {
		return nil, fmt.Errorf("get_header_by_number %d: %w", uint64(number), ErrNotFound)
	}
	copied := *header
	return &copied, nil
}

func (c *FakeClient) GetTipHeader(ctx context.Context) (*types.Header, error) {
	c.mu.Lock()
	tip := c.tipNumber
	c.mu.Unlock()
	return c.GetHeaderByNumber(ctx, types.Uint64(tip))
}

func (c *FakeClient) GetTipBlockNumber(_ context.Context) (types.Uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.Uint64(c.tipNumber), nil
}

func (c *FakeClient) TxPoolInfo(_ context.Context) (*TxPoolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &TxPoolInfo{
		TipNumber:  types.Uint64(c.tipNumber),
		MinFeeRate: types.Uint64(c.minFeeRate),
	}, nil
}

func (c *FakeClient) GetTransaction(_ context.Context, hash types.Hash) (*TransactionWithStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue, ok := c.txStatuses[hash]
	if !ok || len(queue) == 0 {
		return &TransactionWithStatus{TxStatus: TxStatus{Status: StatusUnknown}}, nil
	}
	status := queue[0]
	if len(queue) > 1 {
		c.txStatuses[hash] = queue[1:]
	}
	return &TransactionWithStatus{
		Transaction: c.transactions[hash],
		TxStatus:    status,
	}, nil
}

func (c *FakeClient) SendTransaction(_ context.Context, tx *types.Transaction) (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := tx.ComputeHash()
	c.transactions[hash] = &types.TransactionView{Transaction: *tx, Hash: hash}
	// 未预置状态序列的交易视为立即落链
	if len(c.txStatuses[hash]) == 0 {
		c.txStatuses[hash] = []TxStatus{{Status: StatusCommitted}}
	}
	return hash, nil
}
