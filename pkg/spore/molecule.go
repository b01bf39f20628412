package spore

import (
	"encoding/binary"

	"github.com/ashuralyk/ckb-cinnabar/pkg/types"
)

// 本文件实现NFT单元数据与动作记录的molecule编码。
// SporeData = table{content_type: Bytes, content: Bytes, cluster_id: BytesOpt}
// ClusterData = table{name: Bytes, description: Bytes}
// 动作记录为union编码（4字节小端标签+表体），整体打包为dynvec。

func packBytes(raw []byte) []byte {
	out := make([]byte, 0, 4+len(raw))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(raw)))
	return append(out, raw...)
}

func packTable(fields ...[]byte) []byte {
	headerSize := 4 + 4*len(fields)
	full := headerSize
	for _, field := range fields {
		full += len(field)
	}
	out := make([]byte, 0, full)
	out = binary.LittleEndian.AppendUint32(out, uint32(full))
	offset := headerSize
	for _, field := range fields {
		out = binary.LittleEndian.AppendUint32(out, uint32(offset))
		offset += len(field)
	}
	for _, field := range fields {
		out = append(out, field...)
	}
	return out
}

// SporeData NFT单元的数据负载
type SporeData struct {
	ContentType string
	Content     []byte
	ClusterID   *types.Hash
}

// Serialize molecule编码
func (d SporeData) Serialize() types.Bytes {
	var clusterID []byte
	if d.ClusterID != nil {
		clusterID = packBytes(d.ClusterID.Bytes())
	}
	return packTable(
		packBytes([]byte(d.ContentType)),
		packBytes(d.Content),
		clusterID,
	)
}

// ClusterData 集合单元的数据负载
type ClusterData struct {
	Name        string
	Description string
}

// Serialize molecule编码
func (d ClusterData) Serialize() types.Bytes {
	return packTable(
		packBytes([]byte(d.Name)),
		packBytes([]byte(d.Description)),
	)
}

// ActionKind 动作种类，同时充当union编码的标签
type ActionKind uint32

const (
	ActionMint ActionKind = iota
	ActionTransfer
	ActionBurn
)

// Action 一条铸造、转移或销毁记录
type Action struct {
	Kind    ActionKind
	SporeID types.Hash
	From    *types.Script
	To      *types.Script
}

func packScriptOpt(script *types.Script) []byte {
	if script == nil {
		return nil
	}
	return script.Serialize()
}

func (a Action) serialize() []byte {
	body := packTable(
		a.SporeID.Bytes(),
		packScriptOpt(a.From),
		packScriptOpt(a.To),
	)
	out := make([]byte, 0, 4+len(body))
	out = binary.LittleEndian.AppendUint32(out, uint32(a.Kind))
	return append(out, body...)
}

// packActions 把全部动作记录打包为一个见证负载
func packActions(actions []Action) types.Bytes {
	items := make([][]byte, len(actions))
	for i, action := range actions {
		items[i] = action.serialize()
	}
	return packTable(items...)
}
