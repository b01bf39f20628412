package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func lockCell(lockArg byte, capacity uint64, index uint32) IndexerCell {
	return IndexerCell{
		OutPoint: types.OutPoint{TxHash: hashOf(0xaa), Index: types.Uint32(index)},
		Output: types.CellOutput{
			Capacity: types.Uint64(capacity),
			Lock: types.Script{
				CodeHash: hashOf(0x01),
				HashType: types.HashTypeType,
				Args:     types.Bytes{lockArg},
			},
		},
	}
}

func TestJSONRPCClientCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		switch req.Method {
		case "get_tip_block_number":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":"0x400"}`, req.ID)
		case "get_header":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":null}`, req.ID)
		case "tx_pool_info":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"boom"}}`, req.ID)
		default:
			t.Fatalf("unexpected method %q", req.Method)
		}
	}))
	defer server.Close()

	client := NewJSONRPCClient(server.URL, WithTimeout(time.Second))
	ctx := context.Background()

	tip, err := client.GetTipBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Uint64(0x400), tip)

	_, err = client.GetHeader(ctx, hashOf(0x01))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.TxPoolInfo(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFakeClientSearch(t *testing.T) {
	fake := NewFakeClient()
	fake.InsertFakeCell(lockCell(0x01, 100, 0))
	fake.InsertFakeCell(lockCell(0x02, 200, 1))
	fake.InsertFakeCell(lockCell(0x01, 300, 2))
	ctx := context.Background()

	exact := &SearchKey{
		Script: types.Script{
			CodeHash: hashOf(0x01),
			HashType: types.HashTypeType,
			Args:     types.Bytes{0x01},
		},
		ScriptType:       ScriptTypeLock,
		ScriptSearchMode: SearchModeExact,
	}
	page, err := fake.GetCells(ctx, exact, OrderAsc, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.Equal(t, types.Uint64(100), page.Objects[0].Output.Capacity)
	assert.Equal(t, types.Uint64(300), page.Objects[1].Output.Capacity)

	// prefix模式下空args匹配全部
	prefix := &SearchKey{
		Script: types.Script{
			CodeHash: hashOf(0x01),
			HashType: types.HashTypeType,
		},
		ScriptType:       ScriptTypeLock,
		ScriptSearchMode: SearchModePrefix,
	}
	page, err = fake.GetCells(ctx, prefix, OrderAsc, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Objects, 3)
}

func TestFakeClientPagination(t *testing.T) {
	fake := NewFakeClient()
	for i := 0; i < 5; i++ {
		fake.InsertFakeCell(lockCell(0x01, uint64(100*(i+1)), uint32(i)))
	}
	ctx := context.Background()
	key := &SearchKey{
		Script: types.Script{
			CodeHash: hashOf(0x01),
			HashType: types.HashTypeType,
			Args:     types.Bytes{0x01},
		},
		ScriptType:       ScriptTypeLock,
		ScriptSearchMode: SearchModeExact,
	}

	first, err := fake.GetCells(ctx, key, OrderAsc, 2, "")
	require.NoError(t, err)
	require.Len(t, first.Objects, 2)

	second, err := fake.GetCells(ctx, key, OrderAsc, 2, first.LastCursor)
	require.NoError(t, err)
	require.Len(t, second.Objects, 2)
	assert.NotEqual(t, first.Objects[0].Output.Capacity, second.Objects[0].Output.Capacity)

	third, err := fake.GetCells(ctx, key, OrderAsc, 2, second.LastCursor)
	require.NoError(t, err)
	assert.Len(t, third.Objects, 1)
}

func TestFakeClientLiveCellAndTxStatus(t *testing.T) {
	fake := NewFakeClient()
	cell := lockCell(0x01, 100, 0)
	cell.OutputData = types.Bytes{0xde, 0xad}
	fake.InsertFakeCell(cell)
	ctx := context.Background()

	live, err := fake.GetLiveCell(ctx, cell.OutPoint, true)
	require.NoError(t, err)
	assert.Equal(t, "live", live.Status)
	require.NotNil(t, live.Cell.Data)
	assert.Equal(t, types.Bytes{0xde, 0xad}, live.Cell.Data.Content)

	missing, err := fake.GetLiveCell(ctx, types.OutPoint{TxHash: hashOf(0xff)}, false)
	require.NoError(t, err)
	assert.Equal(t, "unknown", missing.Status)

	// 预置状态序列按轮询顺序消费，末状态保持
	var tx types.Transaction
	hash := tx.ComputeHash()
	fake.InsertFakeTxStatus(hash, TxStatus{Status: StatusPending})
	fake.InsertFakeTxStatus(hash, TxStatus{Status: StatusCommitted})
	_, err = fake.SendTransaction(ctx, &tx)
	require.NoError(t, err)

	for _, want := range []TransactionStatus{StatusPending, StatusCommitted, StatusCommitted} {
		got, err := fake.GetTransaction(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, want, got.TxStatus.Status)
	}
}

func TestCellIter(t *testing.T) {
	fake := NewFakeClient()
	for i := 0; i < 7; i++ {
		fake.InsertFakeCell(lockCell(0x01, uint64(100*(i+1)), uint32(i)))
	}
	key := &SearchKey{
		Script: types.Script{
			CodeHash: hashOf(0x01),
			HashType: types.HashTypeType,
			Args:     types.Bytes{0x01},
		},
		ScriptType:       ScriptTypeLock,
		ScriptSearchMode: SearchModeExact,
	}
	ctx := context.Background()

	it := NewCellIter(fake, key, WithBatchSize(3))
	cells, err := it.Collect(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, cells, 7)

	// 客户端谓词过滤容量不足的单元
	filtered := NewCellIter(fake, key, WithBatchSize(3), WithPredicate(func(cell *IndexerCell) bool {
		return uint64(cell.Output.Capacity) >= 500
	}))
	cells, err = filtered.Collect(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, cells, 3)

	// 上限先于耗尽生效
	capped := NewCellIter(fake, key, WithBatchSize(3))
	cells, err = capped.Collect(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, cells, 2)
}

// shortPageClient 模拟会返回不足batchSize中间页的索引服务
type shortPageClient struct {
	Client
	pages []LiveCells
	calls int
}

func (c *shortPageClient) GetCells(_ context.Context, _ *SearchKey, _ Order, _ types.Uint32, _ string) (*LiveCells, error) {
	if c.calls >= len(c.pages) {
		return &LiveCells{}, nil
	}
	page := c.pages[c.calls]
	c.calls++
	return &page, nil
}

func TestCellIterShortPages(t *testing.T) {
	// 两个非空页都短于batchSize，遍历须到空页才终止，短页不算耗尽
	client := &shortPageClient{pages: []LiveCells{
		{Objects: []IndexerCell{lockCell(0x01, 100, 0)}, LastCursor: "0x01"},
		{Objects: []IndexerCell{lockCell(0x01, 200, 1)}, LastCursor: "0x02"},
	}}
	it := NewCellIter(client, &SearchKey{}, WithBatchSize(10))
	cells, err := it.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, cells, 2)
}

type countingClient struct {
	Client
	headerCalls int
}

func (c *countingClient) GetHeader(ctx context.Context, hash types.Hash) (*types.Header, error) {
	c.headerCalls++
	return c.Client.GetHeader(ctx, hash)
}

func TestCachedClientHeaders(t *testing.T) {
	fake := NewFakeClient()
	header := types.Header{Hash: hashOf(0x07), Number: 42}
	fake.InsertFakeHeader(header)

	counting := &countingClient{Client: fake}
	cached, err := NewCachedClient(counting, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.GetHeader(ctx, header.Hash)
		require.NoError(t, err)
		assert.Equal(t, header.Number, got.Number)
	}
	assert.Equal(t, 1, counting.headerCalls)

	// 按高度查询命中同一份缓存
	got, err := cached.GetHeaderByNumber(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, header.Hash, got.Hash)
	assert.Equal(t, 1, counting.headerCalls)
}
