package session

import "ChessArena/internal/seek"

// ConnPoolMap 连接 <-> 匹配池 的双向映射，
// 两张 map 永远同步变化，只允许通过本类型的方法改动。
type ConnPoolMap struct {
	connToPools map[string]map[seek.PoolKey]struct{}
	poolToConns map[seek.PoolKey]map[string]struct{}
}

func NewConnPoolMap() *ConnPoolMap {
	return &ConnPoolMap{
		connToPools: make(map[string]map[seek.PoolKey]struct{}),
		poolToConns: make(map[seek.PoolKey]map[string]struct{}),
	}
}

func (m *ConnPoolMap) Add(connID string, key seek.PoolKey) {
	if _, ok := m.connToPools[connID]; !ok {
		m.connToPools[connID] = make(map[seek.PoolKey]struct{})
	}
	if _, ok := m.poolToConns[key]; !ok {
		m.poolToConns[key] = make(map[string]struct{})
	}
	m.connToPools[connID][key] = struct{}{}
	m.poolToConns[key][connID] = struct{}{}
}

// PoolsOf 该连接正在求战的所有池
func (m *ConnPoolMap) PoolsOf(connID string) []seek.PoolKey {
	var keys []seek.PoolKey
	for k := range m.connToPools[connID] {
		keys = append(keys, k)
	}
	return keys
}

// ConnsOf 在该池中求战的所有连接
func (m *ConnPoolMap) ConnsOf(key seek.PoolKey) []string {
	var conns []string
	for c := range m.poolToConns[key] {
		conns = append(conns, c)
	}
	return conns
}

// RemoveConn 摘掉连接及其在所有池里的登记
func (m *ConnPoolMap) RemoveConn(connID string) {
	for k := range m.connToPools[connID] {
		delete(m.poolToConns[k], connID)
		if len(m.poolToConns[k]) == 0 {
			delete(m.poolToConns, k)
		}
	}
	delete(m.connToPools, connID)
}

// RemovePool 摘掉池及其所有连接的登记
func (m *ConnPoolMap) RemovePool(key seek.PoolKey) {
	for c := range m.poolToConns[key] {
		delete(m.connToPools[c], key)
		if len(m.connToPools[c]) == 0 {
			delete(m.connToPools, c)
		}
	}
	delete(m.poolToConns, key)
}

func (m *ConnPoolMap) Pools() []seek.PoolKey {
	var keys []seek.PoolKey
	for k := range m.poolToConns {
		keys = append(keys, k)
	}
	return keys
}

func (m *ConnPoolMap) Empty() bool {
	return len(m.connToPools) == 0
}

// Entry 序列化用的扁平表示
type Entry struct {
	Conn string       `json:"conn"`
	Pool seek.PoolKey `json:"pool"`
}

func (m *ConnPoolMap) Entries() []Entry {
	var es []Entry
	for c, pools := range m.connToPools {
		for k := range pools {
			es = append(es, Entry{Conn: c, Pool: k})
		}
	}
	return es
}

func ConnPoolMapFromEntries(es []Entry) *ConnPoolMap {
	m := NewConnPoolMap()
	for _, e := range es {
		m.Add(e.Conn, e.Pool)
	}
	return m
}
