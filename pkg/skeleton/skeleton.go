package skeleton

import (
	"encoding/binary"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// TransactionSkeleton 交易骨架：构造期的可变交易聚合。
// 输入、输出、依赖、区块头依赖与见证全部保持插入顺序，
// 由流水线中的各操作依次修改，最终一次性转为线格式提交。
type TransactionSkeleton struct {
	Inputs     []CellInputEx
	Outputs    []CellOutputEx
	CellDeps   []CellDepEx
	HeaderDeps []HeaderDepEx
	Witnesses  []WitnessEx
}

// New 创建空骨架
func New() *TransactionSkeleton {
	return &TransactionSkeleton{}
}

// AddInput 追加输入，previous out-point重复时报错
func (sk *TransactionSkeleton) AddInput(input CellInputEx) error {
	for _, existing := range sk.Inputs {
		if existing.Input.PreviousOutput == input.Input.PreviousOutput {
			return fmt.Errorf("input %s#%d: %w",
				input.Input.PreviousOutput.TxHash,
				uint32(input.Input.PreviousOutput.Index),
				ErrDuplicateInput)
		}
	}
	sk.Inputs = append(sk.Inputs, input)
	return nil
}

// ContainsInput 该出点是否已被骨架消费
func (sk *TransactionSkeleton) ContainsInput(outPoint types.OutPoint) bool {
	for _, input := range sk.Inputs {
		if input.Input.PreviousOutput == outPoint {
			return true
		}
	}
	return false
}

// AddOutput 追加输出，不做容量校验（校验属于构造输出的操作）
func (sk *TransactionSkeleton) AddOutput(output CellOutputEx) {
	sk.Outputs = append(sk.Outputs, output)
}

// AddCellDep 追加依赖单元，按线格式字节静默去重。
// 输入严格查重而依赖静默去重是有意为之：同一依赖会被多个
// 互不知情的操作合理地重复登记。
func (sk *TransactionSkeleton) AddCellDep(dep CellDepEx) {
	for _, existing := range sk.CellDeps {
		if existing.CellDep == dep.CellDep {
			return
		}
	}
	sk.CellDeps = append(sk.CellDeps, dep)
}

// AddHeaderDep 追加区块头依赖，按区块哈希静默去重
func (sk *TransactionSkeleton) AddHeaderDep(dep HeaderDepEx) {
	for _, existing := range sk.HeaderDeps {
		if existing.BlockHash == dep.BlockHash {
			return
		}
	}
	sk.HeaderDeps = append(sk.HeaderDeps, dep)
}

// AddWitness 追加见证
func (sk *TransactionSkeleton) AddWitness(witness WitnessEx) {
	sk.Witnesses = append(sk.Witnesses, witness)
}

// SetWitness 覆写指定槽位的见证
func (sk *TransactionSkeleton) SetWitness(index int, witness WitnessEx) error {
	if index < 0 || index >= len(sk.Witnesses) {
		return fmt.Errorf("witness %d of %d: %w", index, len(sk.Witnesses), ErrIndexOutOfRange)
	}
	sk.Witnesses[index] = witness
	return nil
}

// InputAt 按下标取输入
func (sk *TransactionSkeleton) InputAt(index int) (*CellInputEx, error) {
	if index < 0 || index >= len(sk.Inputs) {
		return nil, fmt.Errorf("input %d of %d: %w", index, len(sk.Inputs), ErrIndexOutOfRange)
	}
	return &sk.Inputs[index], nil
}

// OutputAt 按下标取输出
func (sk *TransactionSkeleton) OutputAt(index int) (*CellOutputEx, error) {
	if index < 0 || index >= len(sk.Outputs) {
		return nil, fmt.Errorf("output %d of %d: %w", index, len(sk.Outputs), ErrIndexOutOfRange)
	}
	return &sk.Outputs[index], nil
}

// PopInput 移除并返回末位输入
func (sk *TransactionSkeleton) PopInput() (CellInputEx, error) {
	if len(sk.Inputs) == 0 {
		return CellInputEx{}, fmt.Errorf("pop input: %w", ErrIndexOutOfRange)
	}
	last := sk.Inputs[len(sk.Inputs)-1]
	sk.Inputs = sk.Inputs[:len(sk.Inputs)-1]
	return last, nil
}

// RemoveInput 移除指定下标的输入，保持其余顺序
func (sk *TransactionSkeleton) RemoveInput(index int) error {
	if index < 0 || index >= len(sk.Inputs) {
		return fmt.Errorf("input %d of %d: %w", index, len(sk.Inputs), ErrIndexOutOfRange)
	}
	sk.Inputs = append(sk.Inputs[:index], sk.Inputs[index+1:]...)
	return nil
}

// PopOutput 移除并返回末位输出
func (sk *TransactionSkeleton) PopOutput() (CellOutputEx, error) {
	if len(sk.Outputs) == 0 {
		return CellOutputEx{}, fmt.Errorf("pop output: %w", ErrIndexOutOfRange)
	}
	last := sk.Outputs[len(sk.Outputs)-1]
	sk.Outputs = sk.Outputs[:len(sk.Outputs)-1]
	return last, nil
}

// RemoveOutput 移除指定下标的输出，保持其余顺序
func (sk *TransactionSkeleton) RemoveOutput(index int) error {
	if index < 0 || index >= len(sk.Outputs) {
		return fmt.Errorf("output %d of %d: %w", index, len(sk.Outputs), ErrIndexOutOfRange)
	}
	sk.Outputs = append(sk.Outputs[:index], sk.Outputs[index+1:]...)
	return nil
}

// FindCellDepByName 按逻辑名称查找依赖单元
func (sk *TransactionSkeleton) FindCellDepByName(name string) *CellDepEx {
	for i := range sk.CellDeps {
		if sk.CellDeps[i].Name == name {
			return &sk.CellDeps[i]
		}
	}
	return nil
}

// FindCellDepByScript 查找能充当该脚本代码来源的依赖单元：
// 先按类型脚本哈希匹配，再回退到数据哈希匹配
func (sk *TransactionSkeleton) FindCellDepByScript(script types.Script) *CellDepEx {
	for i := range sk.CellDeps {
		dep := &sk.CellDeps[i]
		if typeHash, ok := dep.Output.TypeHash(); ok && typeHash == script.CodeHash {
			return dep
		}
	}
	for i := range sk.CellDeps {
		dep := &sk.CellDeps[i]
		if dep.DataKnown && dep.Output.DataHash() == script.CodeHash {
			return dep
		}
	}
	return nil
}

// TotalInputCapacity 输入容量之和
func (sk *TransactionSkeleton) TotalInputCapacity() uint64 {
	var total uint64
	for _, input := range sk.Inputs {
		total += uint64(input.Output.Output.Capacity)
	}
	return total
}

// TotalOutputCapacity 输出声明容量之和
func (sk *TransactionSkeleton) TotalOutputCapacity() uint64 {
	var total uint64
	for _, output := range sk.Outputs {
		total += uint64(output.Output.Capacity)
	}
	return total
}

// NeededCapacity 输出超出输入的缺口，不缺时为0
func (sk *TransactionSkeleton) NeededCapacity() uint64 {
	in, out := sk.TotalInputCapacity(), sk.TotalOutputCapacity()
	if out > in {
		return out - in
	}
	return 0
}

// ExceededCapacity 输入超出输出的盈余，不盈时为0
func (sk *TransactionSkeleton) ExceededCapacity() uint64 {
	in, out := sk.TotalInputCapacity(), sk.TotalOutputCapacity()
	if in > out {
		return in - out
	}
	return 0
}

// LockScriptGroups 返回使用该锁定脚本的输入与输出下标，
// 同锁输入构成一个签名组
func (sk *TransactionSkeleton) LockScriptGroups(lock types.Script) (inputs, outputs []int) {
	for i, input := range sk.Inputs {
		if input.Output.Output.Lock.Equal(lock) {
			inputs = append(inputs, i)
		}
	}
	for i, output := range sk.Outputs {
		if output.Output.Lock.Equal(lock) {
			outputs = append(outputs, i)
		}
	}
	return inputs, outputs
}

// DeriveTypeID 派生指定输出的唯一标识：
// 首个输入的序列化字节拼接输出下标（小端u64）的CKB哈希。
// 新铸单元在交易成形前不知道自己的出点，故唯一性绑定到消费的输入上；
// 这也要求铸造操作必须在至少一个输入就位后执行。
func (sk *TransactionSkeleton) DeriveTypeID(outputIndex uint64) (types.Hash, error) {
	if len(sk.Inputs) == 0 {
		return types.Hash{}, fmt.Errorf("derive type id for output %d: %w", outputIndex, ErrEmptyInputs)
	}
	indexBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(indexBytes, outputIndex)
	return types.CkbHash(sk.Inputs[0].Input.Serialize(), indexBytes), nil
}

// PadWitnesses 用空的传统见证补齐到输入数量
func (sk *TransactionSkeleton) PadWitnesses() {
	for len(sk.Witnesses) < len(sk.Inputs) {
		sk.Witnesses = append(sk.Witnesses, NewEmptyWitness())
	}
}
