package types

import (
	"bytes"
	"fmt"
)

// HashType 脚本哈希引用方式，决定code_hash按数据哈希还是类型哈希解释
type HashType string

const (
	HashTypeData  HashType = "data"
	HashTypeType  HashType = "type"
	HashTypeData1 HashType = "data1"
	HashTypeData2 HashType = "data2"
)

// Byte 返回链上编码的字节值
func (t HashType) Byte() byte {
	switch t {
	case HashTypeData:
		return 0x00
	case HashTypeType:
		return 0x01
	case HashTypeData1:
		return 0x02
	case HashTypeData2:
		return 0x04
	default:
		panic(fmt.Sprintf("unknown hash type %q", string(t)))
	}
}

// HashTypeFromByte 从链上字节值还原哈希引用方式
func HashTypeFromByte(b byte) (HashType, error) {
	switch b {
	case 0x00:
		return HashTypeData, nil
	case 0x01:
		return HashTypeType, nil
	case 0x02:
		return HashTypeData1, nil
	case 0x04:
		return HashTypeData2, nil
	default:
		return "", fmt.Errorf("unknown hash type byte 0x%02x", b)
	}
}

// Valid 是否为已定义的哈希引用方式
func (t HashType) Valid() bool {
	switch t {
	case HashTypeData, HashTypeType, HashTypeData1, HashTypeData2:
		return true
	default:
		return false
	}
}

// Script 锁定或类型脚本
type Script struct {
	CodeHash Hash     `json:"code_hash"`
	HashType HashType `json:"hash_type"`
	Args     Bytes    `json:"args"`
}

// Hash 脚本自身序列化后的CKB哈希，用于索引与分组
func (s Script) Hash() Hash {
	return CkbHash(s.Serialize())
}

// Equal 按值比较两个脚本
func (s Script) Equal(other Script) bool {
	return s.CodeHash == other.CodeHash &&
		s.HashType == other.HashType &&
		bytes.Equal(s.Args, other.Args)
}

// OccupiedBytes 脚本占用字节数（code_hash + hash_type + args）
func (s Script) OccupiedBytes() uint64 {
	return HashLength + 1 + uint64(len(s.Args))
}

func (s Script) String() string {
	return fmt.Sprintf("Script{code_hash: %s, hash_type: %s, args: %s}",
		s.CodeHash, s.HashType, Bytes(s.Args))
}
