package calculate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
)

// Operation 对骨架的一次原子修改。执行期间独占骨架与日志，
// 副作用仅限骨架修改与日志写入，不得跨调用保留状态。
type Operation interface {
	Run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *Log) error
}

// Instruction 顺序执行的操作列表，遇到首个失败立即终止
type Instruction struct {
	operations []Operation
}

// NewInstruction 从操作列表构造指令
func NewInstruction(operations ...Operation) *Instruction {
	return &Instruction{operations: operations}
}

// Push 追加一个操作
func (in *Instruction) Push(op Operation) {
	in.operations = append(in.operations, op)
}

// Pop 移除并返回末位操作
func (in *Instruction) Pop() Operation {
	if len(in.operations) == 0 {
		return nil
	}
	last := in.operations[len(in.operations)-1]
	in.operations = in.operations[:len(in.operations)-1]
	return last
}

// Append 批量追加操作
func (in *Instruction) Append(operations ...Operation) {
	in.operations = append(in.operations, operations...)
}

// Merge 吸收另一条指令的全部操作
func (in *Instruction) Merge(other *Instruction) {
	in.operations = append(in.operations, other.operations...)
	other.operations = nil
}

// Len 操作数量
func (in *Instruction) Len() int {
	return len(in.operations)
}

// run 按序执行并消费全部操作，操作是一次性的
func (in *Instruction) run(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton, log *Log) error {
	operations := in.operations
	in.operations = nil
	for i, op := range operations {
		if err := op.Run(ctx, client, sk, log); err != nil {
			return fmt.Errorf("operation %d (%T): %w", i, op, err)
		}
	}
	return nil
}

// Calculator 驱动一组指令共享同一骨架与日志顺序执行。
// 任何失败立即终止整个运行，构造到一半的骨架按约定废弃。
type Calculator struct {
	instructions []*Instruction
	logger       *zap.Logger
}

// CalculatorOption 计算器可选配置
type CalculatorOption func(*Calculator)

// WithLogger 设置结构化日志器
func WithLogger(logger *zap.Logger) CalculatorOption {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// NewCalculator 从指令列表构造计算器
func NewCalculator(instructions []*Instruction, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		instructions: instructions,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddInstruction 追加一条指令
func (c *Calculator) AddInstruction(in *Instruction) {
	c.instructions = append(c.instructions, in)
}

// NewSkeleton 在全新骨架上运行全部指令
func (c *Calculator) NewSkeleton(ctx context.Context, client rpc.Client) (*skeleton.TransactionSkeleton, *Log, error) {
	sk := skeleton.New()
	log, err := c.ApplySkeleton(ctx, client, sk)
	if err != nil {
		return nil, nil, err
	}
	return sk, log, nil
}

// ApplySkeleton 在既有骨架上继续运行全部指令
func (c *Calculator) ApplySkeleton(ctx context.Context, client rpc.Client, sk *skeleton.TransactionSkeleton) (*Log, error) {
	log := &Log{}
	for i, in := range c.instructions {
		c.logger.Debug("running instruction",
			zap.Int("index", i),
			zap.Int("operations", in.Len()))
		if err := in.run(ctx, client, sk, log); err != nil {
			c.logger.Debug("instruction failed", zap.Int("index", i), zap.Error(err))
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	c.logger.Info("calculation finished",
		zap.Int("inputs", len(sk.Inputs)),
		zap.Int("outputs", len(sk.Outputs)),
		zap.Int("log_entries", log.Len()))
	return log, nil
}
