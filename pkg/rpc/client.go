package rpc

import (
	"context"
	"errors"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// ErrNotFound 节点不存在所请求的对象（区块、区块头或交易）
var ErrNotFound = errors.New("object not found")

// ScriptType 索引检索的脚本槽位
type ScriptType string

const (
	ScriptTypeLock ScriptType = "lock"
	ScriptTypeType ScriptType = "type"
)

// SearchMode 索引检索的匹配方式
type SearchMode string

const (
	SearchModeExact  SearchMode = "exact"
	SearchModePrefix SearchMode = "prefix"
)

// Order 索引检索的返回顺序
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// SearchKeyFilter 索引检索的附加过滤条件
type SearchKeyFilter struct {
	Script               *types.Script `json:"script,omitempty"`
	OutputData           *types.Bytes  `json:"output_data,omitempty"`
	OutputDataFilterMode *SearchMode   `json:"output_data_filter_mode,omitempty"`
}

// SearchKey 索引检索条件
type SearchKey struct {
	Script           types.Script     `json:"script"`
	ScriptType       ScriptType       `json:"script_type"`
	ScriptSearchMode SearchMode       `json:"script_search_mode,omitempty"`
	Filter           *SearchKeyFilter `json:"filter,omitempty"`
	WithData         bool             `json:"with_data"`
}

// IndexerCell 索引返回的存活单元
type IndexerCell struct {
	BlockNumber types.Uint64     `json:"block_number"`
	OutPoint    types.OutPoint   `json:"out_point"`
	Output      types.CellOutput `json:"output"`
	OutputData  types.Bytes      `json:"output_data"`
	TxIndex     types.Uint32     `json:"tx_index"`
}

// LiveCells 索引检索的分页结果
type LiveCells struct {
	Objects    []IndexerCell `json:"objects"`
	LastCursor string        `json:"last_cursor"`
}

// CellData 单元数据及其哈希
type CellData struct {
	Content types.Bytes `json:"content"`
	Hash    types.Hash  `json:"hash"`
}

// CellInfo 单元的输出与数据
type CellInfo struct {
	Data   *CellData        `json:"data"`
	Output types.CellOutput `json:"output"`
}

// CellWithStatus get_live_cell的返回，Status为"live"时Cell有效
type CellWithStatus struct {
	Cell   *CellInfo `json:"cell"`
	Status string    `json:"status"`
}

// TransactionStatus 交易在交易池或链上的状态
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusProposed  TransactionStatus = "proposed"
	StatusCommitted TransactionStatus = "committed"
	StatusRejected  TransactionStatus = "rejected"
	StatusUnknown   TransactionStatus = "unknown"
)

// TxStatus 交易状态及其落块位置
type TxStatus struct {
	Status    TransactionStatus `json:"status"`
	BlockHash *types.Hash       `json:"block_hash"`
	Reason    string            `json:"reason,omitempty"`
}

// TransactionWithStatus get_transaction的返回
type TransactionWithStatus struct {
	Transaction *types.TransactionView `json:"transaction"`
	TxStatus    TxStatus               `json:"tx_status"`
}

// TxPoolInfo 交易池概要
type TxPoolInfo struct {
	TipHash    types.Hash   `json:"tip_hash"`
	TipNumber  types.Uint64 `json:"tip_number"`
	Pending    types.Uint64 `json:"pending"`
	Proposed   types.Uint64 `json:"proposed"`
	MinFeeRate types.Uint64 `json:"min_fee_rate"`
}

// BlockView 区块视图（仅构造流程所需的字段）
type BlockView struct {
	Header       types.Header            `json:"header"`
	Transactions []types.TransactionView `json:"transactions"`
}

// Client 节点访问接口，链上查询与交易提交都经由它完成
type Client interface {
	// GetLiveCell 按出点查询存活单元，withData为true时附带单元数据
	GetLiveCell(ctx context.Context, outPoint types.OutPoint, withData bool) (*CellWithStatus, error)
	// GetCells 按检索条件分页拉取存活单元
	GetCells(ctx context.Context, key *SearchKey, order Order, limit types.Uint32, cursor string) (*LiveCells, error)
	// GetBlock 按区块哈希查询区块
	GetBlock(ctx context.Context, hash types.Hash) (*BlockView, error)
	// GetBlockByNumber 按区块高度查询区块
	GetBlockByNumber(ctx context.Context, number types.Uint64) (*BlockView, error)
	// GetBlockHash 按区块高度查询区块哈希
	GetBlockHash(ctx context.Context, number types.Uint64) (types.Hash, error)
	// GetHeader 按区块哈希查询区块头
	GetHeader(ctx context.Context, hash types.Hash) (*types.Header, error)
	// GetHeaderByNumber 按区块高度查询区块头
	GetHeaderByNumber(ctx context.Context, number types.Uint64) (*types.Header, error)
	// GetTipHeader 查询最新区块头
	GetTipHeader(ctx context.Context) (*types.Header, error)
	// GetTipBlockNumber 查询最新区块高度
	GetTipBlockNumber(ctx context.Context) (types.Uint64, error)
	// TxPoolInfo 查询交易池概要（含最低费率）
	TxPoolInfo(ctx context.Context) (*TxPoolInfo, error)
	// GetTransaction 按交易哈希查询交易及其状态
	GetTransaction(ctx context.Context, hash types.Hash) (*TransactionWithStatus, error)
	// SendTransaction 提交交易，返回节点侧计算的交易哈希
	SendTransaction(ctx context.Context, tx *types.Transaction) (types.Hash, error)
}
