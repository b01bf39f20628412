package dao

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/calculate"
	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

func uint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func isDepositMarker(data types.Bytes) bool {
	if len(data) != depositDataLen {
		return false
	}
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

func daoCellSearchKey(lock types.Script) *rpc.SearchKey {
	daoType := TypeScript()
	return &rpc.SearchKey{
		Script:           lock,
		ScriptType:       rpc.ScriptTypeLock,
		ScriptSearchMode: rpc.SearchModeExact,
		Filter:           &rpc.SearchKeyFilter{Script: &daoType},
		WithData:         true,
	}
}

// WithdrawPhaseOne 标记提取：检索归属某锁定脚本的存入单元，
// 按存入区块时间戳做成熟度过滤，累计容量直到MaxCapacity（0为不设上限）。
// 每个命中的存入单元消费后产出同容量的标记单元，数据为存入区块高度，
// 并登记存入区块头依赖。标记单元归属TransferTo，缺省沿用存入单元的
// 锁定脚本。匹配总容量写入日志。
type WithdrawPhaseOne struct {
	Network             types.Network
	Lock                skeleton.ScriptEx
	TransferTo          *skeleton.ScriptEx
	MaxCapacity         uint64
	TimestampUpperBound uint64
	TolerateEmpty       bool
}

func (op WithdrawPhaseOne) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *calculate.Log) error {
	lock, err := op.Lock.ToScript(sk)
	if err != nil {
		return err
	}
	var transferLock *types.Script
	if op.TransferTo != nil {
		resolved, err := op.TransferTo.ToScript(sk)
		if err != nil {
			return err
		}
		transferLock = &resolved
	}
	iter := rpc.NewCellIter(client, daoCellSearchKey(lock), rpc.WithPredicate(func(cell *rpc.IndexerCell) bool {
		return isDepositMarker(cell.OutputData) && !sk.ContainsInput(cell.OutPoint)
	}))

	var total uint64
	for op.MaxCapacity == 0 || total < op.MaxCapacity {
		cell, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if cell == nil {
			break
		}
		depositHeader, err := client.GetHeaderByNumber(ctx, cell.BlockNumber)
		if err != nil {
			return err
		}
		if op.TimestampUpperBound > 0 && uint64(depositHeader.Timestamp) > op.TimestampUpperBound {
			continue
		}

		if err := sk.AddInput(skeleton.NewInputFromIndexerCell(*cell, 0)); err != nil {
			return err
		}
		sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: depositHeader.Hash, Header: *depositHeader})
		markerLock := cell.Output.Lock
		if transferLock != nil {
			markerLock = *transferLock
		}
		daoType := TypeScript()
		sk.AddOutput(skeleton.CellOutputEx{
			Output: types.CellOutput{
				Capacity: cell.Output.Capacity,
				Lock:     markerLock,
				Type:     &daoType,
			},
			Data: uint64LE(uint64(depositHeader.Number)),
		})
		total += uint64(cell.Output.Capacity)
	}

	if total == 0 && !op.TolerateEmpty {
		return fmt.Errorf("no mature deposit under lock %s: %w", lock.Hash(), rpc.ErrNotFound)
	}
	if err := addCellDep(sk, op.Network); err != nil {
		return err
	}
	log.Append(LogKeyWithdrawPhaseOne, uint64LE(total))
	return nil
}

// WithdrawPhaseTwo 结算提取：检索阶段一产出的标记单元，
// 累计标记容量直到MaxCapacity（0为不设上限），依据存入与标记两个
// 区块头计算实际可取金额，把每个输入的since设为最早解锁点
// （绝对epoch分数），见证的input_type槽指向存入区块头依赖的下标，
// 最终聚合为一个归属TransferTo（缺省为Lock）的纯容量输出。
type WithdrawPhaseTwo struct {
	Network       types.Network
	Lock          skeleton.ScriptEx
	TransferTo    *skeleton.ScriptEx
	MaxCapacity   uint64
	TolerateEmpty bool
}

func (op WithdrawPhaseTwo) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *calculate.Log) error {
	lock, err := op.Lock.ToScript(sk)
	if err != nil {
		return err
	}
	iter := rpc.NewCellIter(client, daoCellSearchKey(lock), rpc.WithPredicate(func(cell *rpc.IndexerCell) bool {
		return len(cell.OutputData) == depositDataLen &&
			!isDepositMarker(cell.OutputData) &&
			!sk.ContainsInput(cell.OutPoint)
	}))

	var total, searched uint64
	for op.MaxCapacity == 0 || searched < op.MaxCapacity {
		cell, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if cell == nil {
			break
		}
		withdrawHeader, err := client.GetHeaderByNumber(ctx, cell.BlockNumber)
		if err != nil {
			return err
		}
		depositNumber := binary.LittleEndian.Uint64(cell.OutputData)
		depositHeader, err := client.GetHeaderByNumber(ctx, types.Uint64(depositNumber))
		if err != nil {
			return err
		}

		marker := skeleton.CellOutputEx{
			Output: cell.Output,
			Data:   cell.OutputData,
		}
		amount, err := withdrawAmount(depositHeader, withdrawHeader, marker)
		if err != nil {
			return err
		}

		unlockPoint := minimalUnlockPoint(depositHeader.EpochView(), withdrawHeader.EpochView())
		if err := sk.AddInput(skeleton.NewInputFromIndexerCell(*cell, types.SinceFromEpoch(unlockPoint))); err != nil {
			return err
		}
		sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: depositHeader.Hash, Header: *depositHeader})
		sk.AddHeaderDep(skeleton.HeaderDepEx{BlockHash: withdrawHeader.Hash, Header: *withdrawHeader})

		depositDepIndex := -1
		for i, dep := range sk.HeaderDeps {
			if dep.BlockHash == depositHeader.Hash {
				depositDepIndex = i
				break
			}
		}
		sk.PadWitnesses()
		inputIndex := len(sk.Inputs) - 1
		if err := sk.SetWitness(inputIndex, skeleton.NewWitnessArgs(nil, uint64LE(uint64(depositDepIndex)), nil)); err != nil {
			return err
		}
		total += amount
		searched += uint64(cell.Output.Capacity)
	}

	if total == 0 && !op.TolerateEmpty {
		return fmt.Errorf("no withdraw marker under lock %s: %w", lock.Hash(), rpc.ErrNotFound)
	}
	if total > 0 {
		receiverLock := lock
		if op.TransferTo != nil {
			receiverLock, err = op.TransferTo.ToScript(sk)
			if err != nil {
				return err
			}
		}
		receiver := skeleton.CellOutputEx{
			Output: types.CellOutput{
				Capacity: types.Uint64(total),
				Lock:     receiverLock,
			},
		}
		if total < receiver.OccupiedCapacity() {
			return fmt.Errorf("withdraw amount %d below receiver occupied %d: %w",
				total, receiver.OccupiedCapacity(), calculate.ErrCapacityTooSmall)
		}
		sk.AddOutput(receiver)
	}
	if err := addCellDep(sk, op.Network); err != nil {
		return err
	}
	log.Append(LogKeyWithdrawPhaseTwo, uint64LE(total))
	return nil
}
