package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Uint32 JSON-RPC 十六进制数值（"0x..."格式）
type Uint32 uint32

// Uint64 JSON-RPC 十六进制数值（"0x..."格式）
type Uint64 uint64

// Bytes JSON-RPC 十六进制字节串（"0x..."格式，允许为空）
type Bytes []byte

func marshalHexQuantity(v uint64) ([]byte, error) {
	return []byte(fmt.Sprintf(`"0x%x"`, v)), nil
}

func unmarshalHexQuantity(data []byte, bits int) (uint64, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("hex quantity: %w", err)
	}
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("hex quantity %q: missing 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, bits)
	if err != nil {
		return 0, fmt.Errorf("hex quantity %q: %w", s, err)
	}
	return v, nil
}

func (u Uint32) MarshalJSON() ([]byte, error) {
	return marshalHexQuantity(uint64(u))
}

func (u *Uint32) UnmarshalJSON(data []byte) error {
	v, err := unmarshalHexQuantity(data, 32)
	if err != nil {
		return err
	}
	*u = Uint32(v)
	return nil
}

func (u Uint64) MarshalJSON() ([]byte, error) {
	return marshalHexQuantity(uint64(u))
}

func (u *Uint64) UnmarshalJSON(data []byte) error {
	v, err := unmarshalHexQuantity(data, 64)
	if err != nil {
		return err
	}
	*u = Uint64(v)
	return nil
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(b) + `"`), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hex bytes: %w", err)
	}
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("hex bytes %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return fmt.Errorf("hex bytes: %w", err)
	}
	*b = raw
	return nil
}

// String 返回"0x..."格式的十六进制表示
func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}
