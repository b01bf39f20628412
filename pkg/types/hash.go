package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
)

// HashLength 哈希字节长度
const HashLength = 32

// ckbHashPersonalization CKB 默认哈希域分隔标签
var ckbHashPersonalization = []byte("ckb-default-hash")

// Hash 32字节哈希值（blake2b-256）
type Hash [HashLength]byte

// ZeroHash 全零哈希
var ZeroHash = Hash{}

// NewHash 从字节切片构建哈希，长度不等于32时报错
func NewHash(raw []byte) (Hash, error) {
	var h Hash
	if len(raw) != HashLength {
		return h, fmt.Errorf("hash requires %d bytes, got %d", HashLength, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// ParseHash 解析"0x..."格式的十六进制哈希
func ParseHash(s string) (Hash, error) {
	var h Hash
	if !strings.HasPrefix(s, "0x") {
		return h, fmt.Errorf("hash %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return h, fmt.Errorf("hash %q: %w", s, err)
	}
	return NewHash(raw)
}

// MustParseHash 解析失败时panic，仅用于硬编码常量
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Bytes 返回哈希的字节切片拷贝
func (h Hash) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// IsZero 是否为全零哈希
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// CkbHash 计算带"ckb-default-hash"个性化标签的blake2b-256哈希
func CkbHash(chunks ...[]byte) Hash {
	hasher, err := blake2b.New(&blake2b.Config{
		Size:   HashLength,
		Person: ckbHashPersonalization,
	})
	if err != nil {
		panic(err) // 配置为编译期常量，不可能失败
	}
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// Uint128 JSON-RPC 十六进制128位数值（如区块nonce）
type Uint128 struct {
	Hi uint64
	Lo uint64
}

func (u Uint128) MarshalJSON() ([]byte, error) {
	if u.Hi == 0 {
		return []byte(fmt.Sprintf(`"0x%x"`, u.Lo)), nil
	}
	return []byte(fmt.Sprintf(`"0x%x%016x"`, u.Hi, u.Lo)), nil
}

func (u *Uint128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("uint128: %w", err)
	}
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("uint128 %q: missing 0x prefix", s)
	}
	digits := s[2:]
	if len(digits) == 0 || len(digits) > 32 {
		return fmt.Errorf("uint128 %q: invalid length", s)
	}
	padded := strings.Repeat("0", 32-len(digits)) + digits
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return fmt.Errorf("uint128 %q: %w", s, err)
	}
	buf := bytes.NewReader(raw)
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		b, _ := buf.ReadByte()
		hi = hi<<8 | uint64(b)
	}
	for i := 0; i < 8; i++ {
		b, _ := buf.ReadByte()
		lo = lo<<8 | uint64(b)
	}
	u.Hi, u.Lo = hi, lo
	return nil
}
