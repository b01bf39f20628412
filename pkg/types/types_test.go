package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCkbHashEmpty(t *testing.T) {
	// blake2b-256("") with "ckb-default-hash" personalization
	want := MustParseHash("0x44f4c69744d5f8c55d642062949dcae49bc4e7ef43d388c5a12f42b5633d163e")
	assert.Equal(t, want, CkbHash())
	assert.Equal(t, want, CkbHash(nil))
	assert.Equal(t, want, CkbHash([]byte{}, []byte{}))
}

func TestCkbHashChunksEquivalent(t *testing.T) {
	payload := []byte("cinnabar")
	assert.Equal(t, CkbHash(payload), CkbHash(payload[:3], payload[3:]))
}

func TestHashJSONRoundTrip(t *testing.T) {
	h := MustParseHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"0x0101010101010101010101010101010101010101010101010101010101010101"`, string(raw))

	var back Hash
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, h, back)
}

func TestParseHashErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing prefix", "0101010101010101010101010101010101010101010101010101010101010101"},
		{"short", "0x0101"},
		{"bad hex", "0xzz01010101010101010101010101010101010101010101010101010101010101"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHash(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestHexQuantityJSON(t *testing.T) {
	raw, err := json.Marshal(Uint64(400))
	require.NoError(t, err)
	assert.Equal(t, `"0x190"`, string(raw))

	var v Uint64
	require.NoError(t, json.Unmarshal([]byte(`"0x190"`), &v))
	assert.Equal(t, Uint64(400), v)

	assert.Error(t, json.Unmarshal([]byte(`"190"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`400`), &v))
}

func TestBytesJSON(t *testing.T) {
	raw, err := json.Marshal(Bytes{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, `"0xdead"`, string(raw))

	empty, err := json.Marshal(Bytes{})
	require.NoError(t, err)
	assert.Equal(t, `"0x"`, string(empty))

	var b Bytes
	require.NoError(t, json.Unmarshal([]byte(`"0xdead"`), &b))
	assert.Equal(t, Bytes{0xde, 0xad}, b)
}

func TestHashTypeByteRoundTrip(t *testing.T) {
	for _, ht := range []HashType{HashTypeData, HashTypeType, HashTypeData1, HashTypeData2} {
		back, err := HashTypeFromByte(ht.Byte())
		require.NoError(t, err)
		assert.Equal(t, ht, back)
	}
	_, err := HashTypeFromByte(0x03)
	assert.Error(t, err)
}

func TestMoleculePrimitives(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 0xaa, 0xbb}, moleculeBytes([]byte{0xaa, 0xbb}))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, moleculeBytes(nil))

	// fixvec头部为条目数而非字节数
	assert.Equal(t,
		[]byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x02},
		moleculeFixVec([][]byte{{0x01}, {0x02}}))

	// dynvec: 总长12+1+1=14，偏移12和13
	assert.Equal(t,
		[]byte{
			0x0e, 0x00, 0x00, 0x00,
			0x0c, 0x00, 0x00, 0x00,
			0x0d, 0x00, 0x00, 0x00,
			0x01, 0x02,
		},
		moleculeDynVec([][]byte{{0x01}, {0x02}}))
}

func TestScriptSerializeAndHash(t *testing.T) {
	s := Script{
		CodeHash: MustParseHash("0x0202020202020202020202020202020202020202020202020202020202020202"),
		HashType: HashTypeType,
		Args:     Bytes{0x11, 0x22},
	}
	raw := s.Serialize()
	// table头16 + 32 + 1 + (4+2)
	assert.Len(t, raw, 16+32+1+6)
	assert.Equal(t, CkbHash(raw), s.Hash())

	other := s
	other.Args = Bytes{0x11, 0x22}
	assert.True(t, s.Equal(other))
	other.Args = Bytes{0x11, 0x23}
	assert.False(t, s.Equal(other))
}

func TestTransactionSerializedSize(t *testing.T) {
	var tx Transaction
	// 空交易体52字节，外层table再加12+4字节见证向量
	assert.Len(t, tx.serializeRaw(), 52)
	assert.Equal(t, 68, tx.SerializedSize())
	assert.False(t, tx.ComputeHash().IsZero())
}

func TestTransactionHashChangesWithInputs(t *testing.T) {
	var tx Transaction
	base := tx.ComputeHash()
	tx.Inputs = append(tx.Inputs, CellInput{
		PreviousOutput: OutPoint{TxHash: MustParseHash("0x0303030303030303030303030303030303030303030303030303030303030303")},
	})
	assert.NotEqual(t, base, tx.ComputeHash())

	// 见证不参与交易哈希
	withWitness := tx
	withWitness.Witnesses = []Bytes{{0x01}}
	assert.Equal(t, tx.ComputeHash(), withWitness.ComputeHash())
}

func TestOccupiedCapacity(t *testing.T) {
	lock := Script{HashType: HashTypeType, Args: make(Bytes, 20)}
	out := CellOutput{Lock: lock}
	assert.Equal(t, CKBytes(8+32+1+20), out.OccupiedCapacity(0))

	typed := out
	typed.Type = &Script{HashType: HashTypeType, Args: make(Bytes, 32)}
	assert.Equal(t, CKBytes(8+32+1+20+32+1+32+4), typed.OccupiedCapacity(4))
}

func TestOutPointVecRoundTrip(t *testing.T) {
	points := []OutPoint{
		{TxHash: MustParseHash("0x0404040404040404040404040404040404040404040404040404040404040404"), Index: 0},
		{TxHash: MustParseHash("0x0505050505050505050505050505050505050505050505050505050505050505"), Index: 7},
	}
	raw := SerializeOutPointVec(points)
	back, err := ParseOutPointVec(raw)
	require.NoError(t, err)
	assert.Equal(t, points, back)

	_, err = ParseOutPointVec(raw[:len(raw)-1])
	assert.Error(t, err)
	_, err = ParseOutPointVec([]byte{0x01})
	assert.Error(t, err)
}

func TestEpochPacking(t *testing.T) {
	e := NewEpoch(5_000, 3, 180)
	assert.Equal(t, uint64(5_000), e.Number())
	assert.Equal(t, uint64(3), e.Index())
	assert.Equal(t, uint64(180), e.Length())

	since := SinceFromEpoch(e)
	assert.Equal(t, uint64(0x2000_0000_0000_0000)|uint64(e), uint64(since))
}

func TestAddressRoundTrip(t *testing.T) {
	lock := Script{
		CodeHash: MustParseHash("0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8"),
		HashType: HashTypeType,
		Args:     make(Bytes, 20),
	}
	for _, network := range []Network{NetworkMainnet, NetworkTestnet} {
		addr, err := EncodeAddress(network, lock)
		require.NoError(t, err)
		assert.Equal(t, string(network), addr[:3])
		// 标准secp256k1地址长达97字符，超过bech32原始的90字符上限
		assert.Greater(t, len(addr), 90)

		gotNetwork, gotLock, err := DecodeAddress(addr)
		require.NoError(t, err)
		assert.Equal(t, network, gotNetwork)
		assert.True(t, lock.Equal(gotLock))
	}

	_, err := EncodeAddress("ck", lock)
	assert.Error(t, err)
	_, _, err = DecodeAddress("ckb1qqqqqqqqq")
	assert.Error(t, err)
}

func TestWitnessArgsSerialize(t *testing.T) {
	// 全空见证：仅table头
	assert.Len(t, SerializeWitnessArgs(nil, nil, nil), 16)

	// 65字节占位lock：16 + (4+65)
	raw := SerializeWitnessArgs(make([]byte, 65), nil, nil)
	assert.Len(t, raw, 16+4+65)
}
