package calculate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// ErrCapacityTooSmall 指定的绝对容量低于输出的最小占用容量
var ErrCapacityTooSmall = errors.New("capacity below occupied minimum")

// AddCellDep 按出点登记依赖单元
type AddCellDep struct {
	Name     string
	OutPoint types.OutPoint
	DepType  types.DepType
	WithData bool
}

func (op AddCellDep) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	dep, err := skeleton.NewCellDepFromOutPoint(ctx, client, op.Name, op.OutPoint, op.DepType, op.WithData)
	if err != nil {
		return err
	}
	sk.AddCellDep(dep)
	return nil
}

// AddCellDepByType 按类型脚本检索承载合约代码的单元并登记为依赖
type AddCellDepByType struct {
	Name       string
	TypeScript types.Script
}

func (op AddCellDepByType) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	page, err := client.GetCells(ctx, &rpc.SearchKey{
		Script:           op.TypeScript,
		ScriptType:       rpc.ScriptTypeType,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}, rpc.OrderAsc, 1, "")
	if err != nil {
		return err
	}
	if len(page.Objects) == 0 {
		return fmt.Errorf("cell dep %q by type %s: %w", op.Name, op.TypeScript.Hash(), rpc.ErrNotFound)
	}
	cell := page.Objects[0]
	sk.AddCellDep(skeleton.CellDepEx{
		Name: op.Name,
		CellDep: types.CellDep{
			OutPoint: cell.OutPoint,
			DepType:  types.DepTypeCode,
		},
		Output: skeleton.CellOutputEx{
			Output: cell.Output,
			Data:   cell.OutputData,
		},
		DataKnown: true,
	})
	return nil
}

// AddHeaderDep 按区块哈希登记区块头依赖
type AddHeaderDep struct {
	BlockHash types.Hash
}

func (op AddHeaderDep) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	header, err := client.GetHeader(ctx, op.BlockHash)
	if err != nil {
		return err
	}
	sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: op.BlockHash, Header: *header})
	return nil
}

// AddHeaderDepByNumber 按区块高度登记区块头依赖
type AddHeaderDepByNumber struct {
	Number types.Uint64
}

func (op AddHeaderDepByNumber) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	header, err := client.GetHeaderByNumber(ctx, op.Number)
	if err != nil {
		return err
	}
	sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: header.Hash, Header: *header})
	return nil
}

// AddHeaderDepByInputIndex 登记某输入所消费交易落块的区块头依赖
type AddHeaderDepByInputIndex struct {
	Index int
}

func (op AddHeaderDepByInputIndex) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	input, err := sk.InputAt(op.Index)
	if err != nil {
		return err
	}
	status, err := client.GetTransaction(ctx, input.Input.PreviousOutput.TxHash)
	if err != nil {
		return err
	}
	if status.TxStatus.Status != rpc.StatusCommitted || status.TxStatus.BlockHash == nil {
		return fmt.Errorf("input %d: consumed tx %s not committed: %w",
			op.Index, input.Input.PreviousOutput.TxHash, rpc.ErrNotFound)
	}
	header, err := client.GetHeader(ctx, *status.TxStatus.BlockHash)
	if err != nil {
		return err
	}
	sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: header.Hash, Header: *header})
	return nil
}

// AddInputCell 按锁定脚本检索存活单元并追加为输入，
// Count为需要的单元数（缺省1），可用单元不足时报错
type AddInputCell struct {
	Lock  skeleton.ScriptEx
	Type  *skeleton.ScriptEx
	Count int
	Since types.Uint64
}

func (op AddInputCell) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	lock, err := op.Lock.ToScript(sk)
	if err != nil {
		return err
	}
	key := &rpc.SearchKey{
		Script:           lock,
		ScriptType:       rpc.ScriptTypeLock,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}
	if op.Type != nil {
		typeScript, err := op.Type.ToScript(sk)
		if err != nil {
			return err
		}
		key.Filter = &rpc.SearchKeyFilter{Script: &typeScript}
	}

	count := op.Count
	if count <= 0 {
		count = 1
	}
	iter := rpc.NewCellIter(client, key, rpc.WithPredicate(func(cell *rpc.IndexerCell) bool {
		return !sk.ContainsInput(cell.OutPoint)
	}))
	added := 0
	for added < count {
		cell, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if cell == nil {
			return fmt.Errorf("lock %s: %d of %d cells available: %w",
				lock.Hash(), added, count, rpc.ErrNotFound)
		}
		if err := sk.AddInput(skeleton.NewInputFromIndexerCell(*cell, op.Since)); err != nil {
			return err
		}
		added++
	}
	return nil
}

// AddInputCellByOutPoint 按出点追加输入
type AddInputCellByOutPoint struct {
	OutPoint types.OutPoint
	Since    types.Uint64
}

func (op AddInputCellByOutPoint) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	input, err := skeleton.NewInputFromOutPoint(ctx, client, op.OutPoint, op.Since)
	if err != nil {
		return err
	}
	return sk.AddInput(input)
}

// AddInputCellByType 按类型脚本检索存活单元并追加为输入
type AddInputCellByType struct {
	Type  skeleton.ScriptEx
	Count int
	Since types.Uint64
}

func (op AddInputCellByType) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	typeScript, err := op.Type.ToScript(sk)
	if err != nil {
		return err
	}
	count := op.Count
	if count <= 0 {
		count = 1
	}
	iter := rpc.NewCellIter(client, &rpc.SearchKey{
		Script:           typeScript,
		ScriptType:       rpc.ScriptTypeType,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}, rpc.WithPredicate(func(cell *rpc.IndexerCell) bool {
		return !sk.ContainsInput(cell.OutPoint)
	}))
	added := 0
	for added < count {
		cell, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if cell == nil {
			return fmt.Errorf("type %s: %d of %d cells available: %w",
				typeScript.Hash(), added, count, rpc.ErrNotFound)
		}
		if err := sk.AddInput(skeleton.NewInputFromIndexerCell(*cell, op.Since)); err != nil {
			return err
		}
		added++
	}
	return nil
}

// AddOutputCell 构造并追加输出。容量按绝对值或在最小占用之上追加；
// UseTypeID要求类型脚本存在且骨架已有输入，派生的唯一标识写入类型脚本参数
type AddOutputCell struct {
	Lock             skeleton.ScriptEx
	Type             *skeleton.ScriptEx
	Capacity         uint64
	AbsoluteCapacity bool
	Data             []byte
	UseTypeID        bool
}

func (op AddOutputCell) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	lock, err := op.Lock.ToScript(sk)
	if err != nil {
		return err
	}
	output := skeleton.CellOutputEx{
		Output: types.CellOutput{Lock: lock},
		Data:   op.Data,
	}
	if op.Type != nil {
		typeScript, err := op.Type.ToScript(sk)
		if err != nil {
			return err
		}
		if op.UseTypeID {
			id, err := sk.DeriveTypeID(uint64(len(sk.Outputs)))
			if err != nil {
				return err
			}
			typeScript.Args = id.Bytes()
		}
		output.Output.Type = &typeScript
	} else if op.UseTypeID {
		return fmt.Errorf("type id requested without type script")
	}

	occupied := output.OccupiedCapacity()
	if op.AbsoluteCapacity {
		if op.Capacity < occupied {
			return fmt.Errorf("absolute capacity %d, occupied %d: %w", op.Capacity, occupied, ErrCapacityTooSmall)
		}
		output.Output.Capacity = types.Uint64(op.Capacity)
	} else {
		output.Output.Capacity = types.Uint64(occupied + op.Capacity)
	}
	sk.AddOutput(output)
	return nil
}

// AddOutputCellByInputIndex 复制某输入消费的单元为输出，可选覆写锁定脚本、
// 类型脚本或数据，ClearType清除类型脚本
type AddOutputCellByInputIndex struct {
	Index     int
	Lock      *skeleton.ScriptEx
	Type      *skeleton.ScriptEx
	ClearType bool
	Data      *[]byte
}

func (op AddOutputCellByInputIndex) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	input, err := sk.InputAt(op.Index)
	if err != nil {
		return err
	}
	output := skeleton.CellOutputEx{
		Output: input.Output.Output,
		Data:   append(types.Bytes(nil), input.Output.Data...),
	}
	if input.Output.Output.Type != nil {
		copied := *input.Output.Output.Type
		output.Output.Type = &copied
	}
	if op.Lock != nil {
		lock, err := op.Lock.ToScript(sk)
		if err != nil {
			return err
		}
		output.Output.Lock = lock
	}
	if op.ClearType {
		output.Output.Type = nil
	} else if op.Type != nil {
		typeScript, err := op.Type.ToScript(sk)
		if err != nil {
			return err
		}
		output.Output.Type = &typeScript
	}
	if op.Data != nil {
		output.Data = *op.Data
	}
	sk.AddOutput(output)
	return nil
}

// AddWitnessArgs 追加见证，Index非nil时改为覆写指定槽位
type AddWitnessArgs struct {
	Witness skeleton.WitnessEx
	Index   *int
}

func (op AddWitnessArgs) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	if op.Index != nil {
		return sk.SetWitness(*op.Index, op.Witness)
	}
	sk.AddWitness(op.Witness)
	return nil
}

// BalanceTransaction 估算手续费、平衡容量并补齐见证，
// 作为流水线的收尾操作
type BalanceTransaction struct {
	Balancer       skeleton.ScriptEx
	ChangeReceiver skeleton.ChangeReceiver
	ExtraFeeRate   uint64
}

func (op BalanceTransaction) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	balancer, err := op.Balancer.ToScript(sk)
	if err != nil {
		return err
	}
	sk.PadWitnesses()
	fee, err := sk.Fee(ctx, client, op.ExtraFeeRate)
	if err != nil {
		return err
	}
	if err := sk.Balance(ctx, client, fee, balancer, op.ChangeReceiver); err != nil {
		return err
	}
	sk.PadWitnesses()
	return nil
}
