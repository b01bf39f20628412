package dao

import (
	"context"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/calculate"
	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// TypeScriptCodeHash 质押合约的类型哈希（主网与测试网一致）
var TypeScriptCodeHash = types.MustParseHash("0x82d76d1b75fe2fd9a27dfbaa65a039221a380d76c926f378d3f81cf3e7e13f2e")

// 质押合约代码单元的出点
var (
	mainnetDepTxHash = types.MustParseHash("0xe2fb199810d49a4d8beec56718ba2593b665db9d52299a0f9e6e75416d73ff5c")
	testnetDepTxHash = types.MustParseHash("0x8f8c79eb6671709633fe6a46de93c0fedc9c1b8a6527a18d3983879542635c9f")
)

const depositDataLen = 8

// cellDepName 骨架中质押合约依赖的逻辑名称
const cellDepName = "dao"

// 日志键：两阶段提取各自匹配到的总容量（小端u64）
const (
	LogKeyWithdrawPhaseOne = "dao/withdraw-phase-one"
	LogKeyWithdrawPhaseTwo = "dao/withdraw-phase-two"
)

// TypeScript 质押合约的类型脚本
func TypeScript() types.Script {
	return types.Script{
		CodeHash: TypeScriptCodeHash,
		HashType: types.HashTypeType,
	}
}

// CellDep 给定网络上质押合约的依赖引用
func CellDep(network types.Network) (types.CellDep, error) {
	switch network {
	case types.NetworkMainnet:
		return types.CellDep{
			OutPoint: types.OutPoint{TxHash: mainnetDepTxHash, Index: 2},
			DepType:  types.DepTypeCode,
		}, nil
	case types.NetworkTestnet:
		return types.CellDep{
			OutPoint: types.OutPoint{TxHash: testnetDepTxHash, Index: 2},
			DepType:  types.DepTypeCode,
		}, nil
	default:
		return types.CellDep{}, fmt.Errorf("unknown network %q", string(network))
	}
}

func addCellDep(sk *skeleton.TransactionSkeleton, network types.Network) error {
	dep, err := CellDep(network)
	if err != nil {
		return err
	}
	sk.AddCellDep(skeleton.CellDepEx{Name: cellDepName, CellDep: dep})
	return nil
}

// AddCellDep 登记质押合约依赖
type AddCellDep struct {
	Network types.Network
}

func (op AddCellDep) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	return addCellDep(sk, op.Network)
}

// Deposit 追加一个质押存入输出：类型脚本为质押合约、
// 数据为8字节全零存入标记，容量为存入总额（绝对值）
type Deposit struct {
	Network  types.Network
	Lock     skeleton.ScriptEx
	Capacity uint64
}

func (op Deposit) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	lock, err := op.Lock.ToScript(sk)
	if err != nil {
		return err
	}
	daoType := TypeScript()
	output := skeleton.CellOutputEx{
		Output: types.CellOutput{
			Capacity: types.Uint64(op.Capacity),
			Lock:     lock,
			Type:     &daoType,
		},
		Data: make(types.Bytes, depositDataLen),
	}
	if occupied := output.OccupiedCapacity(); op.Capacity < occupied {
		return fmt.Errorf("deposit %d, occupied %d: %w", op.Capacity, occupied, calculate.ErrCapacityTooSmall)
	}
	sk.AddOutput(output)
	return addCellDep(sk, op.Network)
}
