package dao

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// lockCycleEpochs 质押的锁定周期长度（epoch数），解锁点按整周期对齐
const lockCycleEpochs = 180

// daoStats 区块头dao字段的四元组（各为小端u64）：
// 累计发行C、累计收益率AR、二级发行S、已占用U
type daoStats struct {
	c  uint64
	ar uint64
	s  uint64
	u  uint64
}

func parseDao(dao types.Bytes) (daoStats, error) {
	if len(dao) != 32 {
		return daoStats{}, fmt.Errorf("dao field requires 32 bytes, got %d", len(dao))
	}
	return daoStats{
		c:  binary.LittleEndian.Uint64(dao[0:8]),
		ar: binary.LittleEndian.Uint64(dao[8:16]),
		s:  binary.LittleEndian.Uint64(dao[16:24]),
		u:  binary.LittleEndian.Uint64(dao[24:32]),
	}, nil
}

// minimalUnlockPoint 最早解锁epoch：存入epoch加上整数个锁定周期，
// 周期数覆盖存入到标记提取之间经过的epoch数，分数部分沿用存入epoch。
// 提取时点的epoch内分数大于存入时点时，当前epoch尚未走满也计为已经过，
// 否则恰好落在周期边界且分数偏后的提取会早解锁一整个周期
func minimalUnlockPoint(deposit, withdraw types.Epoch) types.Epoch {
	passed := withdraw.Number() - deposit.Number()
	if withdraw.Index()*deposit.Length() > deposit.Index()*withdraw.Length() {
		passed++
	}
	cycles := (passed + lockCycleEpochs - 1) / lockCycleEpochs
	if cycles == 0 {
		cycles = 1
	}
	return types.NewEpoch(
		deposit.Number()+cycles*lockCycleEpochs,
		deposit.Index(),
		deposit.Length(),
	)
}

// withdrawAmount 到期可取金额：占用容量原样返还，
// 其余部分按存入与提取两时点的累计收益率之比放大（截断整除）
func withdrawAmount(depositHeader, withdrawHeader *types.Header, cell skeleton.CellOutputEx) (uint64, error) {
	depositStats, err := parseDao(depositHeader.Dao)
	if err != nil {
		return 0, fmt.Errorf("deposit header %s: %w", depositHeader.Hash, err)
	}
	withdrawStats, err := parseDao(withdrawHeader.Dao)
	if err != nil {
		return 0, fmt.Errorf("withdraw header %s: %w", withdrawHeader.Hash, err)
	}
	if depositStats.ar == 0 {
		return 0, fmt.Errorf("deposit header %s: zero accumulated rate", depositHeader.Hash)
	}

	occupied := cell.OccupiedCapacity()
	capacity := uint64(cell.Output.Capacity)
	if capacity < occupied {
		return 0, fmt.Errorf("deposit cell capacity %d below occupied %d", capacity, occupied)
	}
	counted := new(big.Int).SetUint64(capacity - occupied)
	counted.Mul(counted, new(big.Int).SetUint64(withdrawStats.ar))
	counted.Div(counted, new(big.Int).SetUint64(depositStats.ar))
	return occupied + counted.Uint64(), nil
}
