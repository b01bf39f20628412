package skeleton

import (
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// ScriptEx 脚本的两种形态：具体脚本，或按依赖名称延迟解析的脚本引用。
// 引用在骨架中按名称查找依赖单元，取其类型脚本哈希（没有类型脚本时
// 取数据哈希）充当code_hash，因此部署后无需硬编码合约哈希。
type ScriptEx struct {
	concrete *types.Script
	refName  string
	refArgs  types.Bytes
}

// NewScript 从具体脚本构造
func NewScript(script types.Script) ScriptEx {
	return ScriptEx{concrete: &script}
}

// NewCodeScript 按数据哈希（data1）引用代码的具体脚本
func NewCodeScript(codeHash types.Hash, args []byte) ScriptEx {
	return NewScript(types.Script{
		CodeHash: codeHash,
		HashType: types.HashTypeData1,
		Args:     args,
	})
}

// NewTypeScript 按类型哈希引用代码的具体脚本
func NewTypeScript(codeHash types.Hash, args []byte) ScriptEx {
	return NewScript(types.Script{
		CodeHash: codeHash,
		HashType: types.HashTypeType,
		Args:     args,
	})
}

// NewReferenceScript 构造按依赖名称解析的脚本引用
func NewReferenceScript(depName string, args []byte) ScriptEx {
	return ScriptEx{refName: depName, refArgs: args}
}

// IsReference 是否为未解析的脚本引用
func (s ScriptEx) IsReference() bool {
	return s.concrete == nil
}

// Args 返回脚本参数
func (s ScriptEx) Args() types.Bytes {
	if s.concrete != nil {
		return s.concrete.Args
	}
	return s.refArgs
}

// SetArgs 替换脚本参数
func (s *ScriptEx) SetArgs(args []byte) {
	if s.concrete != nil {
		s.concrete.Args = args
		return
	}
	s.refArgs = args
}

// ToScript 解析为具体脚本。引用依据骨架中同名依赖解析：
// 依赖组无法确定唯一code_hash，数据未知时无法回退到数据哈希，均报错。
func (s ScriptEx) ToScript(sk *TransactionSkeleton) (types.Script, error) {
	if s.concrete != nil {
		return *s.concrete, nil
	}
	dep := sk.FindCellDepByName(s.refName)
	if dep == nil {
		return types.Script{}, fmt.Errorf("dep %q not in skeleton: %w", s.refName, ErrReferenceUnresolved)
	}
	if dep.CellDep.DepType == types.DepTypeDepGroup {
		return types.Script{}, fmt.Errorf("dep %q is a dep group, code hash ambiguous: %w", s.refName, ErrReferenceUnresolved)
	}
	if typeHash, ok := dep.Output.TypeHash(); ok {
		return types.Script{
			CodeHash: typeHash,
			HashType: types.HashTypeType,
			Args:     s.refArgs,
		}, nil
	}
	if !dep.DataKnown {
		return types.Script{}, fmt.Errorf("dep %q has no type script and unknown data: %w", s.refName, ErrReferenceUnresolved)
	}
	return types.Script{
		CodeHash: dep.Output.DataHash(),
		HashType: types.HashTypeData1,
		Args:     s.refArgs,
	}, nil
}

// ScriptHash 解析后的脚本哈希
func (s ScriptEx) ScriptHash(sk *TransactionSkeleton) (types.Hash, error) {
	script, err := s.ToScript(sk)
	if err != nil {
		return types.Hash{}, err
	}
	return script.Hash(), nil
}

// ToAddress 解析后按给定网络编码为地址
func (s ScriptEx) ToAddress(network types.Network, sk *TransactionSkeleton) (string, error) {
	script, err := s.ToScript(sk)
	if err != nil {
		return "", err
	}
	return types.EncodeAddress(network, script)
}
