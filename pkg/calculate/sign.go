package calculate

import (
	"context"
	"encoding/binary"
	"fmt"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ashuralyk/ckb-cinnabar/pkg/rpc"
	"github.com/ashuralyk/ckb-cinnabar/pkg/skeleton"
	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// Secp256k1Blake160CodeHash 系统sighash-all锁定脚本的类型哈希
var Secp256k1Blake160CodeHash = types.MustParseHash("0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8")

// 系统锁定脚本依赖组的创世出点
var (
	mainnetSecp256k1DepTxHash = types.MustParseHash("0x71a7ba8fc96349fea0ed3a5c47992e3b4084b031a42264a018e0072e8172e46c")
	testnetSecp256k1DepTxHash = types.MustParseHash("0xf8de3bb47d055cdf460d93a2a6e1b05f7432f9777c8c474abf4eec1d4aee5d37")
)

// Secp256k1CellDep 返回给定网络上系统锁定脚本的依赖组引用
func Secp256k1CellDep(network types.Network) (types.CellDep, error) {
	switch network {
	case types.NetworkMainnet:
		return types.CellDep{
			OutPoint: types.OutPoint{TxHash: mainnetSecp256k1DepTxHash, Index: 0},
			DepType:  types.DepTypeDepGroup,
		}, nil
	case types.NetworkTestnet:
		return types.CellDep{
			OutPoint: types.OutPoint{TxHash: testnetSecp256k1DepTxHash, Index: 0},
			DepType:  types.DepTypeDepGroup,
		}, nil
	default:
		return types.CellDep{}, fmt.Errorf("unknown network %q", string(network))
	}
}

// Secp256k1LockScript 由公钥构造系统锁定脚本，参数为公钥哈希前20字节
func Secp256k1LockScript(pub *secp256k1.PublicKey) types.Script {
	digest := types.CkbHash(pub.SerializeCompressed())
	return types.Script{
		CodeHash: Secp256k1Blake160CodeHash,
		HashType: types.HashTypeType,
		Args:     digest.Bytes()[:20],
	}
}

// AddSecp256k1CellDep 登记系统锁定脚本的依赖组
type AddSecp256k1CellDep struct {
	Network types.Network
}

func (op AddSecp256k1CellDep) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	dep, err := Secp256k1CellDep(op.Network)
	if err != nil {
		return err
	}
	sk.AddCellDep(skeleton.CellDepEx{Name: "secp256k1_blake160", CellDep: dep})
	return nil
}

// AddSighashSignatures 为每把私钥对应的签名组计算sighash-all摘要并签名。
// 摘要覆盖交易哈希、组内首见证（lock槽置为65字节零占位）及组内其余见证、
// 超出输入数量的尾部见证，均带8字节小端长度前缀。
// 签名以[r|s|recovery]的65字节布局写回组内首见证的lock槽。
type AddSighashSignatures struct {
	PrivateKeys [][]byte
}

func (op AddSighashSignatures) Run(_ context.Context, _ rpc.Client, sk *skeleton.TransactionSkeleton, _ *Log) error {
	sk.PadWitnesses()
	txHash := sk.ToTransaction().ComputeHash()

	for _, raw := range op.PrivateKeys {
		if len(raw) != 32 {
			return fmt.Errorf("private key requires 32 bytes, got %d", len(raw))
		}
		priv := secp256k1.PrivKeyFromBytes(raw)
		lock := Secp256k1LockScript(priv.PubKey())
		inputs, _ := sk.LockScriptGroups(lock)
		if len(inputs) == 0 {
			return fmt.Errorf("lock %s owns no input: %w", lock.Hash(), rpc.ErrNotFound)
		}

		digest := sighashDigest(sk, txHash, inputs)
		compact := ecdsa.SignCompact(priv, digest.Bytes(), true)
		signature := make([]byte, 65)
		copy(signature, compact[1:])
		signature[64] = compact[0] - 31

		first := sk.Witnesses[inputs[0]]
		first.Lock = signature
		sk.Witnesses[inputs[0]] = first
	}
	return nil
}

func sighashDigest(sk *skeleton.TransactionSkeleton, txHash types.Hash, group []int) types.Hash {
	chunks := [][]byte{txHash.Bytes()}
	appendWitness := func(witness []byte) {
		length := make([]byte, 8)
		binary.LittleEndian.PutUint64(length, uint64(len(witness)))
		chunks = append(chunks, length, witness)
	}

	first := sk.Witnesses[group[0]]
	placeholder := skeleton.NewWitnessArgs(make([]byte, 65), first.InputType, first.OutputType)
	appendWitness(placeholder.Serialize())
	for _, index := range group[1:] {
		appendWitness(sk.Witnesses[index].Serialize())
	}
	for index := len(sk.Inputs); index < len(sk.Witnesses); index++ {
		appendWitness(sk.Witnesses[index].Serialize())
	}
	return types.CkbHash(chunks...)
}
