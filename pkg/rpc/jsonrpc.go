package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

const defaultRequestTimeout = 30 * time.Second

// JSONRPCClient 基于HTTP的JSON-RPC节点客户端，并发安全
type JSONRPCClient struct {
	rpcURL     string
	indexerURL string
	httpClient *http.Client
	logger     *zap.Logger
	nextID     atomic.Uint64
}

var _ Client = (*JSONRPCClient)(nil)

// Option 客户端可选配置
type Option func(*JSONRPCClient)

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *JSONRPCClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger 设置结构化日志器
func WithLogger(logger *zap.Logger) Option {
	return func(c *JSONRPCClient) {
		c.logger = logger
	}
}

// WithIndexerURL 设置独立的索引服务地址，缺省与节点地址相同
func WithIndexerURL(url string) Option {
	return func(c *JSONRPCClient) {
		c.indexerURL = url
	}
}

// WithHTTPClient 替换底层HTTP客户端
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *JSONRPCClient) {
		c.httpClient = httpClient
	}
}

// NewJSONRPCClient 创建节点客户端
func NewJSONRPCClient(rpcURL string, opts ...Option) *JSONRPCClient {
	c := &JSONRPCClient{
		rpcURL:     rpcURL,
		indexerURL: rpcURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call 发起一次JSON-RPC调用并把result解码到out，result为null时返回ErrNotFound
func (c *JSONRPCClient) call(ctx context.Context, url, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("rpc %s: encode request: %w", method, err)
	}

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("rpc %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: http status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("rpc %s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc %s: server error %d: %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	c.logger.Debug("rpc call finished",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(started)))

	if bytes.Equal(decoded.Result, []byte("null")) {
		return fmt.Errorf("rpc %s: %w", method, ErrNotFound)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("rpc %s: decode result: %w", method, err)
	}
	return nil
}

func (c *JSONRPCClient) GetLiveCell(ctx context.Context, outPoint types.OutPoint, withData bool) (*CellWithStatus, error) {
	var result CellWithStatus
	if err := c.call(ctx, c.rpcURL, "get_live_cell", []any{outPoint, withData}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetCells(ctx context.Context, key *SearchKey, order Order, limit types.Uint32, cursor string) (*LiveCells, error) {
	var cursorParam any
	if cursor != "" {
		cursorParam = cursor
	}
	var result LiveCells
	if err := c.call(ctx, c.indexerURL, "get_cells", []any{key, order, limit, cursorParam}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetBlock(ctx context.Context, hash types.Hash) (*BlockView, error) {
	var result BlockView
	if err := c.call(ctx, c.rpcURL, "get_block", []any{hash}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetBlockByNumber(ctx context.Context, number types.Uint64) (*BlockView, error) {
	var result BlockView
	if err := c.call(ctx, c.rpcURL, "get_block_by_number", []any{number}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetBlockHash(ctx context.Context, number types.Uint64) (types.Hash, error) {
	var result types.Hash
	if err := c.call(ctx, c.rpcURL, "get_block_hash", []any{number}, &result); err != nil {
		return types.Hash{}, err
	}
	return result, nil
}

func (c *JSONRPCClient) GetHeader(ctx context.Context, hash types.Hash) (*types.Header, error) {
	var result types.Header
	if err := c.call(ctx, c.rpcURL, "get_header", []any{hash}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetHeaderByNumber(ctx context.Context, number types.Uint64) (*types.Header, error) {
	var result types.Header
	if err := c.call(ctx, c.rpcURL, "get_header_by_number", []any{number}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetTipHeader(ctx context.Context) (*types.Header, error) {
	var result types.Header
	if err := c.call(ctx, c.rpcURL, "get_tip_header", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetTipBlockNumber(ctx context.Context) (types.Uint64, error) {
	var result types.Uint64
	if err := c.call(ctx, c.rpcURL, "get_tip_block_number", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

func (c *JSONRPCClient) TxPoolInfo(ctx context.Context) (*TxPoolInfo, error) {
	var result TxPoolInfo
	if err := c.call(ctx, c.rpcURL, "tx_pool_info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) GetTransaction(ctx context.Context, hash types.Hash) (*TransactionWithStatus, error) {
	var result TransactionWithStatus
	if err := c.call(ctx, c.rpcURL, "get_transaction", []any{hash}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *JSONRPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) (types.Hash, error) {
	var result types.Hash
	if err := c.call(ctx, c.rpcURL, "send_transaction", []any{tx, "passthrough"}, &result); err != nil {
		return types.Hash{}, err
	}
	return result, nil
}
