package calculate

import (
	"context"
	"errors"
	"testing"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func lockScript(arg byte) types.Script {
	return types.Script{
		CodeHash: hashOf(0x01),
		HashType: types.HashTypeType,
		Args:     types.Bytes{arg},
	}
}

func insertCapacityCell(fake *rpc.FakeClient, lock types.Script, capacity uint64, index uint32) types.OutPoint {
	outPoint := types.OutPoint{TxHash: hashOf(0xaa), Index: types.Uint32(index)}
	fake.InsertFakeCell(rpc.IndexerCell{
		OutPoint: outPoint,
		Output: types.CellOutput{
			Capacity: types.Uint64(capacity),
			Lock:     lock,
		},
	})
	return outPoint
}

func TestLogAccumulates(t *testing.T) {
	log := &Log{}
	log.Append("spore/new-spore-id", []byte{0x01})
	log.Append("other", []byte{0x02})
	log.Append("spore/new-spore-id", []byte{0x03})

	first, ok := log.First("spore/new-spore-id")
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, first)
	assert.Equal(t, [][]byte{{0x01}, {0x03}}, log.All("spore/new-spore-id"))
	assert.Equal(t, 3, log.Len())

	_, ok = log.First("missing")
	assert.False(t, ok)
}

type recordingOp struct {
	tag   string
	order *[]string
	fail  error
}

func (op recordingOp) Run(_ context.Context, _ rpc.Client, _ *skeleton.TransactionSkeleton, log *Log) error {
	*op.order = append(*op.order, op.tag)
	log.Append("ran", []byte(op.tag))
	return op.fail
}

func TestInstructionOrderAndFailFast(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	in := NewInstruction(
		recordingOp{tag: "a", order: &order},
		recordingOp{tag: "b", order: &order, fail: boom},
		recordingOp{tag: "c", order: &order},
	)
	calc := NewCalculator([]*Instruction{in})

	_, _, err := calc.NewSkeleton(context.Background(), rpc.NewFakeClient())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, order)

	// 操作是一次性的，失败后指令已被消费
	assert.Zero(t, in.Len())
}

func TestInstructionMerge(t *testing.T) {
	var order []string
	left := NewInstruction(recordingOp{tag: "a", order: &order})
	right := NewInstruction(recordingOp{tag: "b", order: &order})
	left.Merge(right)
	assert.Equal(t, 2, left.Len())
	assert.Zero(t, right.Len())

	calc := NewCalculator([]*Instruction{left})
	_, log, err := calc.NewSkeleton(context.Background(), rpc.NewFakeClient())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 2, log.Len())
}

func TestAddOutputCellCapacity(t *testing.T) {
	ctx := context.Background()
	fake := rpc.NewFakeClient()

	t.Run("absolute below occupied", func(t *testing.T) {
		sk := skeleton.New()
		op := AddOutputCell{
			Lock:             skeleton.NewScript(lockScript(0x01)),
			Capacity:         1,
			AbsoluteCapacity: true,
		}
		err := op.Run(ctx, fake, sk, &Log{})
		assert.ErrorIs(t, err, ErrCapacityTooSmall)
	})

	t.Run("additional capacity on top of occupied", func(t *testing.T) {
		sk := skeleton.New()
		op := AddOutputCell{
			Lock:     skeleton.NewScript(lockScript(0x01)),
			Capacity: types.CKBytes(10),
			Data:     []byte{0x01, 0x02},
		}
		require.NoError(t, op.Run(ctx, fake, sk, &Log{}))
		require.Len(t, sk.Outputs, 1)
		occupied := sk.Outputs[0].OccupiedCapacity()
		assert.Equal(t, occupied+types.CKBytes(10), uint64(sk.Outputs[0].Output.Capacity))
	})

	t.Run("type id requires an input", func(t *testing.T) {
		sk := skeleton.New()
		typeScript := skeleton.NewScript(lockScript(0x02))
		op := AddOutputCell{
			Lock:      skeleton.NewScript(lockScript(0x01)),
			Type:      &typeScript,
			UseTypeID: true,
		}
		err := op.Run(ctx, fake, sk, &Log{})
		assert.ErrorIs(t, err, skeleton.ErrEmptyInputs)
	})

	t.Run("type id injected into type args", func(t *testing.T) {
		sk := skeleton.New()
		require.NoError(t, sk.AddInput(skeleton.CellInputEx{
			Input: types.CellInput{
				PreviousOutput: types.OutPoint{TxHash: hashOf(0xcc), Index: 0},
			},
		}))
		typeScript := skeleton.NewScript(lockScript(0x02))
		op := AddOutputCell{
			Lock:      skeleton.NewScript(lockScript(0x01)),
			Type:      &typeScript,
			UseTypeID: true,
		}
		require.NoError(t, op.Run(ctx, fake, sk, &Log{}))
		want, err := sk.DeriveTypeID(0)
		require.NoError(t, err)
		assert.Equal(t, types.Bytes(want.Bytes()), sk.Outputs[0].Output.Type.Args)
	})
}

func TestAddInputCell(t *testing.T) {
	fake := rpc.NewFakeClient()
	owner := lockScript(0x05)
	insertCapacityCell(fake, owner, types.CKBytes(100), 0)
	insertCapacityCell(fake, owner, types.CKBytes(200), 1)
	ctx := context.Background()

	sk := skeleton.New()
	op := AddInputCell{Lock: skeleton.NewScript(owner), Count: 2}
	require.NoError(t, op.Run(ctx, fake, sk, &Log{}))
	assert.Len(t, sk.Inputs, 2)
	assert.Equal(t, types.CKBytes(300), sk.TotalInputCapacity())

	// 第三个不存在
	err := AddInputCell{Lock: skeleton.NewScript(owner)}.Run(ctx, fake, sk, &Log{})
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestAddOutputCellByInputIndex(t *testing.T) {
	sk := skeleton.New()
	typeScript := lockScript(0x07)
	require.NoError(t, sk.AddInput(skeleton.CellInputEx{
		Input: types.CellInput{PreviousOutput: types.OutPoint{TxHash: hashOf(0xcc), Index: 0}},
		Output: skeleton.CellOutputEx{
			Output: types.CellOutput{
				Capacity: types.Uint64(types.CKBytes(100)),
				Lock:     lockScript(0x01),
				Type:     &typeScript,
			},
			Data: types.Bytes{0x01},
		},
		DataKnown: true,
	}))

	newLock := skeleton.NewScript(lockScript(0x02))
	op := AddOutputCellByInputIndex{Index: 0, Lock: &newLock}
	require.NoError(t, op.Run(context.Background(), nil, sk, &Log{}))

	require.Len(t, sk.Outputs, 1)
	out := sk.Outputs[0]
	assert.True(t, out.Output.Lock.Equal(lockScript(0x02)))
	require.NotNil(t, out.Output.Type)
	assert.True(t, out.Output.Type.Equal(typeScript))
	assert.Equal(t, types.Bytes{0x01}, out.Data)
	assert.Equal(t, types.CKBytes(100), uint64(out.Output.Capacity))

	cleared := AddOutputCellByInputIndex{Index: 0, ClearType: true}
	require.NoError(t, cleared.Run(context.Background(), nil, sk, &Log{}))
	assert.Nil(t, sk.Outputs[1].Output.Type)
}

func TestBalanceTransactionPipeline(t *testing.T) {
	fake := rpc.NewFakeClient()
	payer := lockScript(0x05)
	receiver := lockScript(0x06)
	for i := 0; i < 3; i++ {
		insertCapacityCell(fake, payer, types.CKBytes(200), uint32(i))
	}
	fake.SetFakeFeeRate(1000)

	calc := NewCalculator([]*Instruction{
		NewInstruction(
			AddOutputCell{
				Lock:     skeleton.NewScript(receiver),
				Capacity: types.CKBytes(100),
			},
			BalanceTransaction{
				Balancer:       skeleton.NewScript(payer),
				ChangeReceiver: skeleton.ChangeToLock(payer),
			},
		),
	})
	sk, _, err := calc.NewSkeleton(context.Background(), fake)
	require.NoError(t, err)

	assert.NotEmpty(t, sk.Inputs)
	assert.Len(t, sk.Witnesses, len(sk.Inputs))
	// 平衡后盈余恰好等于手续费
	fee := sk.ExceededCapacity()
	assert.Positive(t, fee)
	size := uint64(sk.ToTransaction().SerializedSize())
	assert.LessOrEqual(t, fee, size*2)
}

func TestAddSighashSignatures(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	lock := Secp256k1LockScript(priv.PubKey())
	assert.Len(t, []byte(lock.Args), 20)

	sk := skeleton.New()
	require.NoError(t, sk.AddInput(skeleton.CellInputEx{
		Input: types.CellInput{PreviousOutput: types.OutPoint{TxHash: hashOf(0xcc), Index: 0}},
		Output: skeleton.CellOutputEx{
			Output: types.CellOutput{
				Capacity: types.Uint64(types.CKBytes(100)),
				Lock:     lock,
			},
		},
	}))
	require.NoError(t, sk.AddInput(skeleton.CellInputEx{
		Input: types.CellInput{PreviousOutput: types.OutPoint{TxHash: hashOf(0xcc), Index: 1}},
		Output: skeleton.CellOutputEx{
			Output: types.CellOutput{
				Capacity: types.Uint64(types.CKBytes(100)),
				Lock:     lock,
			},
		},
	}))

	op := AddSighashSignatures{PrivateKeys: [][]byte{priv.Serialize()}}
	require.NoError(t, op.Run(context.Background(), nil, sk, &Log{}))

	require.Len(t, sk.Witnesses, 2)
	signature := sk.Witnesses[0].Lock
	require.Len(t, []byte(signature), 65)
	// 组内第二个见证保持为空
	assert.Empty(t, sk.Witnesses[1].Serialize())

	// 从签名恢复公钥，必须与签名私钥一致
	digest := sighashDigest(sk, sk.ToTransaction().ComputeHash(), []int{0, 1})
	compact := make([]byte, 65)
	compact[0] = signature[64] + 31
	copy(compact[1:], signature[:64])
	recovered, compressed, err := ecdsa.RecoverCompact(compact, digest.Bytes())
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.True(t, recovered.IsEqual(priv.PubKey()))
}

func TestAddSighashSignaturesUnknownOwner(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sk := skeleton.New()
	op := AddSighashSignatures{PrivateKeys: [][]byte{priv.Serialize()}}
	assert.ErrorIs(t, op.Run(context.Background(), nil, sk, &Log{}), rpc.ErrNotFound)
}

func TestAddCellDepAndHeaderDepOps(t *testing.T) {
	fake := rpc.NewFakeClient()
	ctx := context.Background()

	depPoint := insertCapacityCell(fake, lockScript(0x01), types.CKBytes(500), 0)
	fake.InsertFakeHeader(types.Header{Hash: hashOf(0x09), Number: 99})

	sk := skeleton.New()
	log := &Log{}
	require.NoError(t, AddCellDep{
		Name:     "contract",
		OutPoint: depPoint,
		DepType:  types.DepTypeCode,
		WithData: true,
	}.Run(ctx, fake, sk, log))
	require.Len(t, sk.CellDeps, 1)
	assert.True(t, sk.CellDeps[0].DataKnown)

	require.NoError(t, AddHeaderDep{BlockHash: hashOf(0x09)}.Run(ctx, fake, sk, log))
	require.NoError(t, AddHeaderDepByNumber{Number: 99}.Run(ctx, fake, sk, log))
	// 同一区块头只登记一次
	assert.Len(t, sk.HeaderDeps, 1)

	err := AddCellDep{Name: "missing", OutPoint: types.OutPoint{TxHash: hashOf(0xff)}}.Run(ctx, fake, sk, log)
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}
