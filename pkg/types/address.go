package types

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Network 链网络，同时充当地址前缀
type Network string

const (
	NetworkMainnet Network = "ckb"
	NetworkTestnet Network = "ckt"
)

// Valid 是否为已知网络
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// addressFormatFull 完整格式地址的负载前缀字节
const addressFormatFull byte = 0x00

// EncodeAddress 将锁定脚本编码为完整格式bech32m地址
func EncodeAddress(network Network, lock Script) (string, error) {
	if !network.Valid() {
		return "", fmt.Errorf("unknown network %q", string(network))
	}
	if !lock.HashType.Valid() {
		return "", fmt.Errorf("unknown hash type %q", string(lock.HashType))
	}
	payload := make([]byte, 0, 2+HashLength+len(lock.Args))
	payload = append(payload, addressFormatFull)
	payload = append(payload, lock.CodeHash.Bytes()...)
	payload = append(payload, lock.HashType.Byte())
	payload = append(payload, lock.Args...)
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("address payload: %w", err)
	}
	addr, err := bech32.EncodeM(string(network), converted)
	if err != nil {
		return "", fmt.Errorf("address encode: %w", err)
	}
	return addr, nil
}

// DecodeAddress 解析完整格式bech32m地址，还原网络与锁定脚本。
// 完整格式地址普遍超过bech32的90字符上限，按无长度限制方式解码
func DecodeAddress(addr string) (Network, Script, error) {
	hrp, data, version, err := bech32.DecodeNoLimitWithVersion(addr)
	if err != nil {
		return "", Script{}, fmt.Errorf("address decode: %w", err)
	}
	if version != bech32.VersionM {
		return "", Script{}, fmt.Errorf("address %q: not a bech32m address", addr)
	}
	network := Network(hrp)
	if !network.Valid() {
		return "", Script{}, fmt.Errorf("address %q: unknown network %q", addr, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", Script{}, fmt.Errorf("address payload: %w", err)
	}
	if len(payload) < 2+HashLength {
		return "", Script{}, fmt.Errorf("address %q: payload too short", addr)
	}
	if payload[0] != addressFormatFull {
		return "", Script{}, fmt.Errorf("address %q: unsupported format 0x%02x", addr, payload[0])
	}
	codeHash, err := NewHash(payload[1 : 1+HashLength])
	if err != nil {
		return "", Script{}, err
	}
	hashType, err := HashTypeFromByte(payload[1+HashLength])
	if err != nil {
		return "", Script{}, fmt.Errorf("address %q: %w", addr, err)
	}
	args := make([]byte, len(payload)-2-HashLength)
	copy(args, payload[2+HashLength:])
	return network, Script{CodeHash: codeHash, HashType: hashType, Args: args}, nil
}
