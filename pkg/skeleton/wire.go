package skeleton

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// ToTransaction 转为线格式交易
func (sk *TransactionSkeleton) ToTransaction() *types.Transaction {
	tx := &types.Transaction{
		CellDeps:    make([]types.CellDep, 0, len(sk.CellDeps)),
		HeaderDeps:  make([]types.Hash, 0, len(sk.HeaderDeps)),
		Inputs:      make([]types.CellInput, 0, len(sk.Inputs)),
		Outputs:     make([]types.CellOutput, 0, len(sk.Outputs)),
		OutputsData: make([]types.Bytes, 0, len(sk.Outputs)),
		Witnesses:   make([]types.Bytes, 0, len(sk.Witnesses)),
	}
	for _, dep := range sk.CellDeps {
		tx.CellDeps = append(tx.CellDeps, dep.CellDep)
	}
	for _, dep := range sk.HeaderDeps {
		tx.HeaderDeps = append(tx.HeaderDeps, dep.BlockHash)
	}
	for _, input := range sk.Inputs {
		tx.Inputs = append(tx.Inputs, input.Input)
	}
	for _, output := range sk.Outputs {
		tx.Outputs = append(tx.Outputs, output.Output)
		tx.OutputsData = append(tx.OutputsData, output.Data)
	}
	for _, witness := range sk.Witnesses {
		tx.Witnesses = append(tx.Witnesses, witness.Serialize())
	}
	return tx
}

// NewFromTransaction 从线格式交易还原骨架：并发取回全部输入与依赖指向的
// 存活单元。线格式不携带依赖名称，依次补为"unknown-%d"。
// 见证以plain形式原样保留，保证往返无损。
func NewFromTransaction(ctx context.Context, client rpc.Client, tx *types.Transaction) (*TransactionSkeleton, error) {
	sk := New()
	sk.Inputs = make([]CellInputEx, len(tx.Inputs))
	sk.CellDeps = make([]CellDepEx, len(tx.CellDeps))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, input := range tx.Inputs {
		i, input := i, input
		group.Go(func() error {
			resolved, err := NewInputFromOutPoint(groupCtx, client, input.PreviousOutput, input.Since)
			if err != nil {
				return err
			}
			sk.Inputs[i] = resolved
			return nil
		})
	}
	for i, dep := range tx.CellDeps {
		i, dep := i, dep
		group.Go(func() error {
			resolved, err := NewCellDepFromOutPoint(groupCtx, client,
				fmt.Sprintf("unknown-%d", i), dep.OutPoint, dep.DepType, true)
			if err != nil {
				return err
			}
			sk.CellDeps[i] = resolved
			return nil
		})
	}
	for _, blockHash := range tx.HeaderDeps {
		blockHash := blockHash
		group.Go(func() error {
			header, err := client.GetHeader(groupCtx, blockHash)
			if err != nil {
				return err
			}
			sk.AddHeaderDep(HeaderDepEx{BlockHash: blockHash, Header: *header})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i, output := range tx.Outputs {
		var data types.Bytes
		if i < len(tx.OutputsData) {
			data = tx.OutputsData[i]
		}
		sk.AddOutput(CellOutputEx{Output: output, Data: data})
	}
	for _, witness := range tx.Witnesses {
		sk.AddWitness(NewPlainWitness(witness))
	}
	return sk, nil
}

// ResolvedTransaction 依赖展开后的交易：依赖组成员与直接依赖分列，
// 供外部执行引擎区分字面引用与间接引用
type ResolvedTransaction struct {
	Transaction       *types.Transaction
	ResolvedInputs    []CellOutputEx
	ResolvedCellDeps  []CellOutputEx
	ResolvedDepGroups []CellOutputEx
}

// ToResolvedTransaction 展开骨架的依赖组：依赖组单元的数据是成员出点向量，
// 逐一取回成员并摊平
func (sk *TransactionSkeleton) ToResolvedTransaction(ctx context.Context, client rpc.Client) (*ResolvedTransaction, error) {
	resolved := &ResolvedTransaction{Transaction: sk.ToTransaction()}
	for _, input := range sk.Inputs {
		resolved.ResolvedInputs = append(resolved.ResolvedInputs, input.Output)
	}
	for _, dep := range sk.CellDeps {
		if dep.CellDep.DepType != types.DepTypeDepGroup {
			resolved.ResolvedCellDeps = append(resolved.ResolvedCellDeps, dep.Output)
			continue
		}
		data := dep.Output.Data
		if !dep.DataKnown {
			live, err := client.GetLiveCell(ctx, dep.CellDep.OutPoint, true)
			if err != nil {
				return nil, err
			}
			if live.Status != "live" || live.Cell == nil || live.Cell.Data == nil {
				return nil, fmt.Errorf("dep group %q: %w", dep.Name, rpc.ErrNotFound)
			}
			data = live.Cell.Data.Content
		}
		members, err := types.ParseOutPointVec(data)
		if err != nil {
			return nil, fmt.Errorf("dep group %q: %w", dep.Name, err)
		}
		for _, member := range members {
			live, err := client.GetLiveCell(ctx, member, true)
			if err != nil {
				return nil, err
			}
			if live.Status != "live" || live.Cell == nil {
				return nil, fmt.Errorf("dep group %q member %s#%d: %w",
					dep.Name, member.TxHash, uint32(member.Index), rpc.ErrNotFound)
			}
			memberOutput := CellOutputEx{Output: live.Cell.Output}
			if live.Cell.Data != nil {
				memberOutput.Data = live.Cell.Data.Content
			}
			resolved.ResolvedDepGroups = append(resolved.ResolvedDepGroups, memberOutput)
		}
	}
	return resolved, nil
}

// Verifier 外部脚本执行引擎的契约：对展开后的交易做完整校验，
// 返回消耗的cycle数
type Verifier interface {
	Verify(ctx context.Context, tx *ResolvedTransaction, maxCycles uint64) (uint64, error)
}

// String 渲染线格式交易的JSON表示
func (sk *TransactionSkeleton) String() string {
	raw, err := json.MarshalIndent(sk.ToTransaction(), "", "  ")
	if err != nil {
		return fmt.Sprintf("TransactionSkeleton(%v)", err)
	}
	return string(raw)
}
