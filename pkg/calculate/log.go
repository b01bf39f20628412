package calculate

// LogEntry 旁路日志条目
type LogEntry struct {
	Key   string
	Value []byte
}

// Log 操作的旁路输出通道。操作的成功返回不携带负载，
// 新派生的唯一标识、匹配到的容量等结果经由Log传给调用方。
// 条目按发生顺序累积，同一键的多次写入全部保留。
type Log struct {
	entries []LogEntry
}

// Append 追加一条记录
func (l *Log) Append(key string, value []byte) {
	l.entries = append(l.entries, LogEntry{Key: key, Value: value})
}

// First 返回该键的首条记录
func (l *Log) First(key string) ([]byte, bool) {
	for _, entry := range l.entries {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// All 返回该键的全部记录，保持写入顺序
func (l *Log) All(key string) [][]byte {
	var values [][]byte
	for _, entry := range l.entries {
		if entry.Key == key {
			values = append(values, entry.Value)
		}
	}
	return values
}

// Entries 返回全部条目
func (l *Log) Entries() []LogEntry {
	return l.entries
}

// Len 条目总数
func (l *Log) Len() int {
	return len(l.entries)
}
