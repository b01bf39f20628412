package spore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ashuralyk/ckb-cinnabar/pkg/calculate"
	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// 骨架中NFT与集合合约依赖的逻辑名称，
// 输出的类型脚本经由脚本引用按这两个名称解析
const (
	SporeCellDepName   = "spore"
	ClusterCellDepName = "cluster"
)

// 日志键：新铸单元的唯一标识（32字节），以及集合授权时
// 记录的集合持有者锁定脚本（molecule编码）
const (
	LogKeyNewSporeID   = "spore/new-spore-id"
	LogKeyNewClusterID = "spore/new-cluster-id"
	LogKeyClusterOwner = "spore/cluster-owner-lock"
)

// AddSporeCellDep 按出点登记NFT合约依赖
type AddSporeCellDep struct {
	OutPoint types.OutPoint
	DepType  types.DepType
}

func (op AddSporeCellDep) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	dep, err := skeleton.NewCellDepFromOutPoint(ctx, client, SporeCellDepName, op.OutPoint, op.DepType, true)
	if err != nil {
		return err
	}
	sk.AddCellDep(dep)
	return nil
}

// AddClusterCellDep 按出点登记集合合约依赖
type AddClusterCellDep struct {
	OutPoint types.OutPoint
	DepType  types.DepType
}

func (op AddClusterCellDep) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	dep, err := skeleton.NewCellDepFromOutPoint(ctx, client, ClusterCellDepName, op.OutPoint, op.DepType, true)
	if err != nil {
		return err
	}
	sk.AddCellDep(dep)
	return nil
}

// findClusterCell 按唯一标识检索存活的集合单元
func findClusterCell(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, clusterID types.Hash) (*rpc.IndexerCell, error) {
	typeScript, err := skeleton.NewReferenceScript(ClusterCellDepName, clusterID.Bytes()).ToScript(sk)
	if err != nil {
		return nil, err
	}
	page, err := client.GetCells(ctx, &rpc.SearchKey{
		Script:           typeScript,
		ScriptType:       rpc.ScriptTypeType,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}, rpc.OrderAsc, 1, "")
	if err != nil {
		return nil, err
	}
	if len(page.Objects) == 0 {
		return nil, fmt.Errorf("cluster %s: %w", clusterID, rpc.ErrNotFound)
	}
	return &page.Objects[0], nil
}

// AddClusterCellDepByClusterID 把既有集合单元登记为依赖，
// 供铸入该集合的NFT单元引用。集合持有者的锁定脚本没有出现在
// 输入或输出任一侧时，把集合单元原样过账（消费后重建）以满足
// 持有者授权，持有者锁定脚本写入日志
type AddClusterCellDepByClusterID struct {
	ClusterID types.Hash
}

func (op AddClusterCellDepByClusterID) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *calculate.Log) error {
	name := fmt.Sprintf("%s-%s", ClusterCellDepName, op.ClusterID)
	dep := sk.FindCellDepByName(name)
	if dep == nil {
		cell, err := findClusterCell(ctx, client, sk, op.ClusterID)
		if err != nil {
			return err
		}
		added := skeleton.CellDepEx{
			Name: name,
			CellDep: types.CellDep{
				OutPoint: cell.OutPoint,
				DepType:  types.DepTypeCode,
			},
			Output:    skeleton.CellOutputEx{Output: cell.Output, Data: cell.OutputData},
			DataKnown: true,
		}
		sk.AddCellDep(added)
		dep = &added
	}

	ownerLock := dep.Output.Output.Lock
	inputs, outputs := sk.LockScriptGroups(ownerLock)
	if len(inputs) > 0 && len(outputs) > 0 {
		return nil
	}
	if sk.ContainsInput(dep.CellDep.OutPoint) {
		return nil
	}
	log.Append(LogKeyClusterOwner, ownerLock.Serialize())
	if err := sk.AddInput(skeleton.CellInputEx{
		Input:     types.CellInput{PreviousOutput: dep.CellDep.OutPoint},
		Output:    dep.Output,
		DataKnown: dep.DataKnown,
	}); err != nil {
		return err
	}
	sk.AddOutput(dep.Output)
	return nil
}

// AddClusterInputCellByClusterID 按唯一标识检索集合单元并追加为输入
type AddClusterInputCellByClusterID struct {
	ClusterID types.Hash
}

func (op AddClusterInputCellByClusterID) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	cell, err := findClusterCell(ctx, client, sk, op.ClusterID)
	if err != nil {
		return err
	}
	return sk.AddInput(skeleton.NewInputFromIndexerCell(*cell, 0))
}

// addUniqueOutput 构造带唯一标识类型脚本的输出：标识由骨架首个输入派生，
// 写入类型脚本参数，容量取最小占用
func addUniqueOutput(sk *skeleton.TransactionSkeleton, depName string, lock skeleton.ScriptEx, data types.Bytes) (types.Hash, error) {
	resolvedLock, err := lock.ToScript(sk)
	if err != nil {
		return types.Hash{}, err
	}
	id, err := sk.DeriveTypeID(uint64(len(sk.Outputs)))
	if err != nil {
		return types.Hash{}, err
	}
	typeScript, err := skeleton.NewReferenceScript(depName, id.Bytes()).ToScript(sk)
	if err != nil {
		return types.Hash{}, err
	}
	output := skeleton.CellOutputEx{
		Output: types.CellOutput{
			Lock: resolvedLock,
			Type: &typeScript,
		},
		Data: data,
	}
	output.Output.Capacity = types.Uint64(output.OccupiedCapacity())
	sk.AddOutput(output)
	return id, nil
}

// AddSporeOutputCell 铸造一个NFT单元：数据为SporeData编码，
// 类型脚本参数为新派生的唯一标识，标识写入日志。
// 铸入既有集合时一并登记该集合单元的依赖与持有者授权
type AddSporeOutputCell struct {
	Lock        skeleton.ScriptEx
	ContentType string
	Content     []byte
	ClusterID   *types.Hash
}

func (op AddSporeOutputCell) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *calculate.Log) error {
	data := SporeData{
		ContentType: op.ContentType,
		Content:     op.Content,
		ClusterID:   op.ClusterID,
	}
	id, err := addUniqueOutput(sk, SporeCellDepName, op.Lock, data.Serialize())
	if err != nil {
		return err
	}
	log.Append(LogKeyNewSporeID, id.Bytes())
	if op.ClusterID != nil {
		return AddClusterCellDepByClusterID{ClusterID: *op.ClusterID}.Run(ctx, client, sk, log)
	}
	return nil
}

// AddClusterOutputCell 铸造一个集合单元，标识写入日志
type AddClusterOutputCell struct {
	Lock        skeleton.ScriptEx
	Name        string
	Description string
}

func (op AddClusterOutputCell) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, log *calculate.Log) error {
	data := ClusterData{Name: op.Name, Description: op.Description}
	id, err := addUniqueOutput(sk, ClusterCellDepName, op.Lock, data.Serialize())
	if err != nil {
		return err
	}
	log.Append(LogKeyNewClusterID, id.Bytes())
	return nil
}

// AddSporeInputCellByID 按唯一标识检索NFT单元并追加为输入，
// Owner非nil时校验持有者
type AddSporeInputCellByID struct {
	SporeID types.Hash
	Owner   *skeleton.ScriptEx
}

func (op AddSporeInputCellByID) Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	typeScript, err := skeleton.NewReferenceScript(SporeCellDepName, op.SporeID.Bytes()).ToScript(sk)
	if err != nil {
		return err
	}
	page, err := client.GetCells(ctx, &rpc.SearchKey{
		Script:           typeScript,
		ScriptType:       rpc.ScriptTypeType,
		ScriptSearchMode: rpc.SearchModeExact,
		WithData:         true,
	}, rpc.OrderAsc, 1, "")
	if err != nil {
		return err
	}
	if len(page.Objects) == 0 {
		return fmt.Errorf("spore %s: %w", op.SporeID, rpc.ErrNotFound)
	}
	cell := page.Objects[0]
	if op.Owner != nil {
		owner, err := op.Owner.ToScript(sk)
		if err != nil {
			return err
		}
		if !cell.Output.Lock.Equal(owner) {
			return fmt.Errorf("spore %s held by %s, not %s",
				op.SporeID, cell.Output.Lock.Hash(), owner.Hash())
		}
	}
	return sk.AddInput(skeleton.NewInputFromIndexerCell(cell, 0))
}

// AddSporeActions 对账：把输入输出中类型脚本命中NFT合约的单元按唯一标识
// 做一趟多重集求差。标识只在输出侧出现为铸造，只在输入侧为销毁，
// 两侧都有为转移（输出侧首配即消费，避免同型哈希的多个输出重复计数）。
// 全部动作记录打包为一个plain见证追加到骨架
type AddSporeActions struct{}

func (op AddSporeActions) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *calculate.Log) error {
	script, err := skeleton.NewReferenceScript(SporeCellDepName, nil).ToScript(sk)
	if err != nil {
		return err
	}
	// code_hash与hash_type须同时命中，仅哈希巧合的data引用不算NFT单元
	isSpore := func(t *types.Script) bool {
		return t != nil && t.CodeHash == script.CodeHash && t.HashType == script.HashType
	}

	type sporeCell struct {
		id   types.Bytes
		lock types.Script
	}
	var inputs, outputs []sporeCell
	for _, input := range sk.Inputs {
		if t := input.Output.Output.Type; isSpore(t) {
			inputs = append(inputs, sporeCell{id: t.Args, lock: input.Output.Output.Lock})
		}
	}
	for _, output := range sk.Outputs {
		if t := output.Output.Type; isSpore(t) {
			outputs = append(outputs, sporeCell{id: t.Args, lock: output.Output.Lock})
		}
	}

	var actions []Action
	consumed := make([]bool, len(outputs))
	for _, in := range inputs {
		matched := false
		for i, out := range outputs {
			if consumed[i] || !bytes.Equal(in.id, out.id) {
				continue
			}
			consumed[i] = true
			matched = true
			id, err := types.NewHash(in.id)
			if err != nil {
				return fmt.Errorf("spore id: %w", err)
			}
			from, to := in.lock, out.lock
			actions = append(actions, Action{
				Kind:    ActionTransfer,
				SporeID: id,
				From:    &from,
				To:      &to,
			})
			break
		}
		if !matched {
			id, err := types.NewHash(in.id)
			if err != nil {
				return fmt.Errorf("spore id: %w", err)
			}
			from := in.lock
			actions = append(actions, Action{Kind: ActionBurn, SporeID: id, From: &from})
		}
	}
	for i, out := range outputs {
		if consumed[i] {
			continue
		}
		id, err := types.NewHash(out.id)
		if err != nil {
			return fmt.Errorf("spore id: %w", err)
		}
		to := out.lock
		actions = append(actions, Action{Kind: ActionMint, SporeID: id, To: &to})
	}

	if len(actions) == 0 {
		return nil
	}
	sk.PadWitnesses()
	sk.AddWitness(skeleton.NewPlainWitness(packActions(actions)))
	return nil
}
