package skeleton

import "errors"

var (
	// ErrDuplicateInput 输入的previous out-point已存在于骨架中
	ErrDuplicateInput = errors.New("duplicate input")
	// ErrInsufficientFunds 补足手续费前付款方已无可用单元
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceInvariant 平衡后校验失败，盈余不等于手续费
	ErrBalanceInvariant = errors.New("balance invariant violated")
	// ErrEmptyInputs 派生唯一标识时骨架尚无输入
	ErrEmptyInputs = errors.New("no inputs in skeleton")
	// ErrReferenceUnresolved 脚本引用无法解析为具体脚本
	ErrReferenceUnresolved = errors.New("script reference unresolved")
	// ErrRejected 链上拒绝了已提交的交易
	ErrRejected = errors.New("transaction rejected")
	// ErrTimeout 等待确认超出时限
	ErrTimeout = errors.New("confirmation timeout")
	// ErrIndexOutOfRange 下标越界
	ErrIndexOutOfRange = errors.New("index out of range")
)
