package types

import (
	"encoding/binary"
	"fmt"
)

// molecule 编码原语，对应 CKB 链上规范序列化格式：
// struct 为字段定长拼接；fixvec 为4字节LE条目数加条目体；
// dynvec/table 为4字节LE总长、每项4字节LE偏移、再接项体；
// option 为空字节或内部编码。

func putUint32LE(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func putUint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// moleculeBytes 编码字节串（byte的fixvec，头部为字节数）
func moleculeBytes(raw []byte) []byte {
	out := make([]byte, 0, 4+len(raw))
	out = append(out, putUint32LE(uint32(len(raw)))...)
	return append(out, raw...)
}

// moleculeFixVec 编码定长项向量（头部为条目数）
func moleculeFixVec(items [][]byte) []byte {
	out := putUint32LE(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

// moleculeDynVec 编码变长项向量（总长+偏移表+项体），table编码与其一致
func moleculeDynVec(items [][]byte) []byte {
	headerSize := 4 + 4*len(items)
	full := headerSize
	for _, item := range items {
		full += len(item)
	}
	out := make([]byte, 0, full)
	out = append(out, putUint32LE(uint32(full))...)
	offset := headerSize
	for _, item := range items {
		out = append(out, putUint32LE(uint32(offset))...)
		offset += len(item)
	}
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func moleculeTable(fields ...[]byte) []byte {
	return moleculeDynVec(fields)
}

// moleculeBytesOpt 编码可选字节串，present为false时编码为空
func moleculeBytesOpt(raw []byte, present bool) []byte {
	if !present {
		return nil
	}
	return moleculeBytes(raw)
}

// Serialize 序列化脚本（table: code_hash, hash_type, args）
func (s Script) Serialize() []byte {
	return moleculeTable(
		s.CodeHash.Bytes(),
		[]byte{s.HashType.Byte()},
		moleculeBytes(s.Args),
	)
}

// Serialize 序列化出点（struct: tx_hash, index）
func (p OutPoint) Serialize() []byte {
	out := make([]byte, 0, 36)
	out = append(out, p.TxHash.Bytes()...)
	return append(out, putUint32LE(uint32(p.Index))...)
}

// Serialize 序列化交易输入（struct: since, previous_output）
func (i CellInput) Serialize() []byte {
	out := make([]byte, 0, 44)
	out = append(out, putUint64LE(uint64(i.Since))...)
	return append(out, i.PreviousOutput.Serialize()...)
}

// Serialize 序列化交易输出（table: capacity, lock, type）
func (o CellOutput) Serialize() []byte {
	var typeOpt []byte
	if o.Type != nil {
		typeOpt = o.Type.Serialize()
	}
	return moleculeTable(
		putUint64LE(uint64(o.Capacity)),
		o.Lock.Serialize(),
		typeOpt,
	)
}

// Serialize 序列化依赖单元（struct: out_point, dep_type）
func (d CellDep) Serialize() []byte {
	out := make([]byte, 0, 37)
	out = append(out, d.OutPoint.Serialize()...)
	return append(out, d.DepType.Byte())
}

// SerializeWitnessArgs 序列化标准见证（table: lock, input_type, output_type，空字段编码为缺省）
func SerializeWitnessArgs(lock, inputType, outputType []byte) []byte {
	return moleculeTable(
		moleculeBytesOpt(lock, len(lock) > 0),
		moleculeBytesOpt(inputType, len(inputType) > 0),
		moleculeBytesOpt(outputType, len(outputType) > 0),
	)
}

// serializeRaw 序列化不含见证的交易体，用于计算交易哈希
func (tx *Transaction) serializeRaw() []byte {
	cellDeps := make([][]byte, len(tx.CellDeps))
	for i, dep := range tx.CellDeps {
		cellDeps[i] = dep.Serialize()
	}
	headerDeps := make([][]byte, len(tx.HeaderDeps))
	for i, h := range tx.HeaderDeps {
		headerDeps[i] = h.Bytes()
	}
	inputs := make([][]byte, len(tx.Inputs))
	for i, input := range tx.Inputs {
		inputs[i] = input.Serialize()
	}
	outputs := make([][]byte, len(tx.Outputs))
	for i, output := range tx.Outputs {
		outputs[i] = output.Serialize()
	}
	outputsData := make([][]byte, len(tx.OutputsData))
	for i, data := range tx.OutputsData {
		outputsData[i] = moleculeBytes(data)
	}
	return moleculeTable(
		putUint32LE(uint32(tx.Version)),
		moleculeFixVec(cellDeps),
		moleculeFixVec(headerDeps),
		moleculeFixVec(inputs),
		moleculeDynVec(outputs),
		moleculeDynVec(outputsData),
	)
}

// Serialize 序列化完整交易（table: raw, witnesses）
func (tx *Transaction) Serialize() []byte {
	witnesses := make([][]byte, len(tx.Witnesses))
	for i, w := range tx.Witnesses {
		witnesses[i] = moleculeBytes(w)
	}
	return moleculeTable(tx.serializeRaw(), moleculeDynVec(witnesses))
}

// SerializedSize 完整交易的序列化字节数，作为手续费计算基数
func (tx *Transaction) SerializedSize() int {
	return len(tx.Serialize())
}

// ComputeHash 计算交易哈希（交易体序列化后的CKB哈希）
func (tx *Transaction) ComputeHash() Hash {
	return CkbHash(tx.serializeRaw())
}

// ParseOutPointVec 解析出点向量（fixvec of 36字节struct），即依赖组单元的数据布局
func ParseOutPointVec(data []byte) ([]OutPoint, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("out point vec: truncated header (%d bytes)", len(data))
	}
	count := binary.LittleEndian.Uint32(data[:4])
	body := data[4:]
	if uint32(len(body)) != count*36 {
		return nil, fmt.Errorf("out point vec: want %d items, body has %d bytes", count, len(body))
	}
	points := make([]OutPoint, 0, count)
	for i := uint32(0); i < count; i++ {
		chunk := body[i*36 : (i+1)*36]
		txHash, err := NewHash(chunk[:32])
		if err != nil {
			return nil, err
		}
		points = append(points, OutPoint{
			TxHash: txHash,
			Index:  Uint32(binary.LittleEndian.Uint32(chunk[32:])),
		})
	}
	return points, nil
}

// SerializeOutPointVec 序列化出点向量，用于构造依赖组单元数据
func SerializeOutPointVec(points []OutPoint) []byte {
	items := make([][]byte, len(points))
	for i, p := range points {
		items[i] = p.Serialize()
	}
	return moleculeFixVec(items)
}
