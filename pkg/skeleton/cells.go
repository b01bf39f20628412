package skeleton

import (
	"context"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// CellOutputEx 输出单元及其链下数据
type CellOutputEx struct {
	Output types.CellOutput
	Data   types.Bytes
}

// OccupiedCapacity 该输出落链所需的最小容量（shannon）
func (o CellOutputEx) OccupiedCapacity() uint64 {
	return o.Output.OccupiedCapacity(len(o.Data))
}

// LockHash 锁定脚本哈希
func (o CellOutputEx) LockHash() types.Hash {
	return o.Output.Lock.Hash()
}

// TypeHash 类型脚本哈希，无类型脚本时second返回false
func (o CellOutputEx) TypeHash() (types.Hash, bool) {
	if o.Output.Type == nil {
		return types.Hash{}, false
	}
	return o.Output.Type.Hash(), true
}

// DataHash 单元数据哈希
func (o CellOutputEx) DataHash() types.Hash {
	return types.CkbHash(o.Data)
}

// CellInputEx 输入单元及其消费的输出，DataKnown标记数据是否已取回
type CellInputEx struct {
	Input     types.CellInput
	Output    CellOutputEx
	DataKnown bool
}

// NewInputFromIndexerCell 从索引检索结果构造输入
func NewInputFromIndexerCell(cell rpc.IndexerCell, since types.Uint64) CellInputEx {
	return CellInputEx{
		Input: types.CellInput{
			Since:          since,
			PreviousOutput: cell.OutPoint,
		},
		Output: CellOutputEx{
			Output: cell.Output,
			Data:   cell.OutputData,
		},
		DataKnown: true,
	}
}

// NewInputFromOutPoint 按出点向节点取回存活单元并构造输入
func NewInputFromOutPoint(ctx context.Context, client rpc.Client, outPoint types.OutPoint, since types.Uint64) (CellInputEx, error) {
	live, err := client.GetLiveCell(ctx, outPoint, true)
	if err != nil {
		return CellInputEx{}, err
	}
	if live.Status != "live" || live.Cell == nil {
		return CellInputEx{}, fmt.Errorf("cell %s#%d status %q: %w",
			outPoint.TxHash, uint32(outPoint.Index), live.Status, rpc.ErrNotFound)
	}
	input := CellInputEx{
		Input: types.CellInput{
			Since:          since,
			PreviousOutput: outPoint,
		},
		Output: CellOutputEx{Output: live.Cell.Output},
	}
	if live.Cell.Data != nil {
		input.Output.Data = live.Cell.Data.Content
		input.DataKnown = true
	}
	return input, nil
}

// CellDepEx 依赖单元及其逻辑名称，名称用于脚本引用解析
type CellDepEx struct {
	Name      string
	CellDep   types.CellDep
	Output    CellOutputEx
	DataKnown bool
}

// NewCellDepFromOutPoint 按出点取回依赖单元
func NewCellDepFromOutPoint(ctx context.Context, client rpc.Client, name string, outPoint types.OutPoint, depType types.DepType, withData bool) (CellDepEx, error) {
	live, err := client.GetLiveCell(ctx, outPoint, withData)
	if err != nil {
		return CellDepEx{}, err
	}
	if live.Status != "live" || live.Cell == nil {
		return CellDepEx{}, fmt.Errorf("cell dep %q %s#%d status %q: %w",
			name, outPoint.TxHash, uint32(outPoint.Index), live.Status, rpc.ErrNotFound)
	}
	dep := CellDepEx{
		Name: name,
		CellDep: types.CellDep{
			OutPoint: outPoint,
			DepType:  depType,
		},
		Output: CellOutputEx{Output: live.Cell.Output},
	}
	if live.Cell.Data != nil {
		dep.Output.Data = live.Cell.Data.Content
		dep.DataKnown = true
	}
	return dep, nil
}

// HeaderDepEx 区块头依赖
type HeaderDepEx struct {
	BlockHash types.Hash
	Header    types.Header
}

// WitnessEx 见证槽位。传统见证按lock/input_type/output_type三段标准布局打包，
// 全空时序列化为零字节；plain见证绕过标准布局直接携带原始字节。
type WitnessEx struct {
	plain bool
	raw   types.Bytes

	Lock       types.Bytes
	InputType  types.Bytes
	OutputType types.Bytes
}

// NewWitnessArgs 构造传统见证
func NewWitnessArgs(lock, inputType, outputType []byte) WitnessEx {
	return WitnessEx{Lock: lock, InputType: inputType, OutputType: outputType}
}

// NewEmptyWitness 构造空的传统见证
func NewEmptyWitness() WitnessEx {
	return WitnessEx{}
}

// NewPlainWitness 构造非标准布局的见证
func NewPlainWitness(raw []byte) WitnessEx {
	return WitnessEx{plain: true, raw: raw}
}

// IsPlain 是否为非标准布局见证
func (w WitnessEx) IsPlain() bool {
	return w.plain
}

// Serialize 序列化见证，空的传统见证编码为零字节
func (w WitnessEx) Serialize() types.Bytes {
	if w.plain {
		return w.raw
	}
	if len(w.Lock) == 0 && len(w.InputType) == 0 && len(w.OutputType) == 0 {
		return nil
	}
	return types.SerializeWitnessArgs(w.Lock, w.InputType, w.OutputType)
}
