package types

// Header 区块头的JSON-RPC视图
type Header struct {
	CompactTarget    Uint32  `json:"compact_target"`
	Dao              Bytes   `json:"dao"`
	Epoch            Uint64  `json:"epoch"`
	ExtraHash        Hash    `json:"extra_hash"`
	Hash             Hash    `json:"hash"`
	Nonce            Uint128 `json:"nonce"`
	Number           Uint64  `json:"number"`
	ParentHash       Hash    `json:"parent_hash"`
	ProposalsHash    Hash    `json:"proposals_hash"`
	Timestamp        Uint64  `json:"timestamp"`
	TransactionsRoot Hash    `json:"transactions_root"`
	Version          Uint32  `json:"version"`
}

// EpochView 返回区块头的分数式epoch
func (h *Header) EpochView() Epoch {
	return Epoch(h.Epoch)
}

// Epoch 打包的分数式epoch值：length<<40 | index<<24 | number
type Epoch uint64

// NewEpoch 按number/index/length组装epoch值
func NewEpoch(number, index, length uint64) Epoch {
	return Epoch(length<<40 | index<<24 | number)
}

// Number epoch序号
func (e Epoch) Number() uint64 {
	return uint64(e) & 0xFFFFFF
}

// Index epoch内区块序数（分子）
func (e Epoch) Index() uint64 {
	return (uint64(e) >> 24) & 0xFFFF
}

// Length epoch区块总数（分母）
func (e Epoch) Length() uint64 {
	return (uint64(e) >> 40) & 0xFFFF
}

// sinceEpochFlag since按绝对epoch解释的标志位
const sinceEpochFlag uint64 = 0x2000_0000_0000_0000

// SinceFromEpoch 构造按绝对epoch解释的since值
func SinceFromEpoch(e Epoch) Uint64 {
	return Uint64(sinceEpochFlag | uint64(e))
}
