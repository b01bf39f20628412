package types

// DepType 依赖单元引用方式：直接代码单元或出点向量构成的依赖组
type DepType string

const (
	DepTypeCode     DepType = "code"
	DepTypeDepGroup DepType = "dep_group"
)

// Byte 返回链上编码的字节值
func (t DepType) Byte() byte {
	if t == DepTypeDepGroup {
		return 0x01
	}
	return 0x00
}

// OutPoint 单元出点，指向某笔交易的某个输出
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  Uint32 `json:"index"`
}

// CellInput 交易输入，消费previous_output指向的存活单元
type CellInput struct {
	Since          Uint64   `json:"since"`
	PreviousOutput OutPoint `json:"previous_output"`
}

// CellOutput 交易输出，Type为nil表示无类型脚本
type CellOutput struct {
	Capacity Uint64  `json:"capacity"`
	Lock     Script  `json:"lock"`
	Type     *Script `json:"type"`
}

// OccupiedCapacity 该输出连同dataLen字节数据落链所占用的最小容量（shannon）
func (o CellOutput) OccupiedCapacity(dataLen int) uint64 {
	occupied := 8 + o.Lock.OccupiedBytes() + uint64(dataLen)
	if o.Type != nil {
		occupied += o.Type.OccupiedBytes()
	}
	return CKBytes(occupied)
}

// CellDep 交易的依赖单元引用
type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  DepType  `json:"dep_type"`
}

// Transaction 交易的JSON-RPC线格式
type Transaction struct {
	Version     Uint32       `json:"version"`
	CellDeps    []CellDep    `json:"cell_deps"`
	HeaderDeps  []Hash       `json:"header_deps"`
	Inputs      []CellInput  `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData []Bytes      `json:"outputs_data"`
	Witnesses   []Bytes      `json:"witnesses"`
}

// TransactionView 携带节点侧计算的交易哈希的交易视图
type TransactionView struct {
	Transaction
	Hash Hash `json:"hash"`
}
