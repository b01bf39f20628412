package types

// OneCKB 1 CKB对应的shannon数
const OneCKB uint64 = 100_000_000

// CKBytes 将CKB字节数换算为shannon容量
func CKBytes(n uint64) uint64 {
	return n * OneCKB
}
