package skeleton

import (
	"context"
	"fmt"
	"time"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

var confirmPollInterval = time.Second

// SendAndWait 提交交易并等待确认。confirmations为0时提交成功即返回；
// 否则轮询交易状态直到落链且链尖再前进confirmations个区块。
// 交易被拒绝返回ErrRejected，超出timeout返回ErrTimeout。
func (sk *TransactionSkeleton) SendAndWait(ctx context.Context, client rpc.Client, confirmations uint64, timeout time.Duration) (types.Hash, error) {
	hash, err := client.SendTransaction(ctx, sk.ToTransaction())
	if err != nil {
		return types.Hash{}, err
	}
	if confirmations == 0 {
		return hash, nil
	}

	deadline := time.Now().Add(timeout)
	var committedNumber uint64
	committed := false
	for {
		if time.Now().After(deadline) {
			return hash, fmt.Errorf("transaction %s after %s: %w", hash, timeout, ErrTimeout)
		}

		if !committed {
			status, err := client.GetTransaction(ctx, hash)
			if err != nil {
				return hash, err
			}
			switch status.TxStatus.Status {
			case rpc.StatusRejected:
				return hash, fmt.Errorf("transaction %s: %s: %w", hash, status.TxStatus.Reason, ErrRejected)
			case rpc.StatusCommitted:
				if status.TxStatus.BlockHash == nil {
					return hash, fmt.Errorf("transaction %s committed without block hash", hash)
				}
				header, err := client.GetHeader(ctx, *status.TxStatus.BlockHash)
				if err != nil {
					return hash, err
				}
				committedNumber = uint64(header.Number)
				committed = true
			}
		}
		if committed {
			tip, err := client.GetTipBlockNumber(ctx)
			if err != nil {
				return hash, err
			}
			if uint64(tip) >= committedNumber+confirmations {
				return hash, nil
			}
		}

		select {
		case <-ctx.Done():
			return hash, ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}
