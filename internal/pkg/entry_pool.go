package pkg

import (
	"sync"
)

// EntryPool 是 Entry 对象的对象池
type EntryPool struct {
	pool sync.Pool
}

// NewEntryPool 创建一个新的 Entry 对象池
func NewEntryPool() *EntryPool {
	return &EntryPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &Entry{}
			},
		},
	}
}

// Get 从对象池中获取一个 Entry 对象
func (p *EntryPool) Get() *Entry {
	entry := p.pool.Get().(*Entry)
	entry.ID = 0
	entry.Offset = 0
	entry.Name = ""
	return entry
}

// Put 将 Entry 对象放回对象池
func (p *EntryPool) Put(entry *Entry) {
	if entry == nil {
		return
	}
	p.pool.Put(entry)
}

// PutAll 将一批 Entry 对象放回对象池
func (p *EntryPool) PutAll(entries []*Entry) {
	for _, entry := range entries {
		p.Put(entry)
	}
}

// EntryPoolInstance 是 EntryPool 的单例
var EntryPoolInstance = NewEntryPool()
