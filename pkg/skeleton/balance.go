package skeleton

import (
	"context"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// Fee 估算手续费：当前序列化字节数 ×（交易池最低费率+附加费率）/ 1000。
// 只按调用时刻的骨架大小计算一次，平衡过程追加的输入不会触发重算，
// 费率下限是最小值而非精确值，这一近似是可接受的既定行为。
func (sk *TransactionSkeleton) Fee(ctx context.Context, client rpc.Client, extraFeeRate uint64) (uint64, error) {
	info, err := client.TxPoolInfo(ctx)
	if err != nil {
		return 0, err
	}
	size := uint64(sk.ToTransaction().SerializedSize())
	return size * (uint64(info.MinFeeRate) + extraFeeRate) / 1000, nil
}

// ChangeReceiver 找零去向：新建归属某锁定脚本的输出，或复用既有输出下标
type ChangeReceiver struct {
	lock        *types.Script
	outputIndex int
}

// ChangeToLock 找零到新建的、归属该锁定脚本的输出
func ChangeToLock(lock types.Script) ChangeReceiver {
	return ChangeReceiver{lock: &lock}
}

// ChangeToAddress 找零到地址对应锁定脚本的新建输出
func ChangeToAddress(addr string) (ChangeReceiver, error) {
	_, lock, err := types.DecodeAddress(addr)
	if err != nil {
		return ChangeReceiver{}, err
	}
	return ChangeToLock(lock), nil
}

// ChangeToOutputIndex 找零叠加到既有输出上
func ChangeToOutputIndex(index int) ChangeReceiver {
	return ChangeReceiver{outputIndex: index}
}

// balancerPredicate 只取纯容量单元：无类型脚本、无数据、且尚未被骨架消费
func (sk *TransactionSkeleton) balancerPredicate(cell *rpc.IndexerCell) bool {
	if cell.Output.Type != nil || len(cell.OutputData) > 0 {
		return false
	}
	return !sk.ContainsInput(cell.OutPoint)
}

// Balance 平衡交易：确立找零输出，循环从balancer锁定的纯容量单元中
// 补充输入直到盈余覆盖fee，再把（盈余−fee）记入找零输出。
// 成功后盈余恰好等于fee，否则以ErrBalanceInvariant终止。
func (sk *TransactionSkeleton) Balance(ctx context.Context, client rpc.Client, fee uint64, balancer types.Script, change ChangeReceiver) error {
	changeIndex := change.outputIndex
	if change.lock != nil {
		sk.AddOutput(CellOutputEx{
			Output: types.CellOutput{Lock: *change.lock},
		})
		changeIndex = len(sk.Outputs) - 1
	}
	changeOutput, err := sk.OutputAt(changeIndex)
	if err != nil {
		return fmt.Errorf("change output: %w", err)
	}

	iter := rpc.NewCellIter(client, &rpc.SearchKey{
		Script:           balancer,
		ScriptType:       rpc.ScriptTypeLock,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}, rpc.WithPredicate(sk.balancerPredicate))

	// 新建的找零输出自身也要满足最小占用容量，缺口一并计入补足目标
	changeShortfall := func() uint64 {
		occupied := changeOutput.OccupiedCapacity()
		declared := uint64(changeOutput.Output.Capacity)
		if occupied > declared {
			return occupied - declared
		}
		return 0
	}

	for sk.NeededCapacity() > 0 || sk.ExceededCapacity() < fee+changeShortfall() {
		cell, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if cell == nil {
			return fmt.Errorf("balancer %s exhausted, input %d vs output %d plus fee %d: %w",
				balancer.Hash(), sk.TotalInputCapacity(), sk.TotalOutputCapacity(), fee, ErrInsufficientFunds)
		}
		if err := sk.AddInput(NewInputFromIndexerCell(*cell, 0)); err != nil {
			return err
		}
	}

	surplus := sk.ExceededCapacity()
	changeOutput.Output.Capacity += types.Uint64(surplus - fee)
	if sk.ExceededCapacity() != fee {
		return fmt.Errorf("exceeded %d != fee %d after balancing: %w",
			sk.ExceededCapacity(), fee, ErrBalanceInvariant)
	}
	return nil
}
