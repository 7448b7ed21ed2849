package store

import (
	"sync"

	"sudooom.im.client/internal/model"
)

// ConnectionDirectory 已接受的连接（可发起会话的对象）
type ConnectionDirectory struct {
	mu      sync.RWMutex
	list    []model.User
	meta    model.PageMeta
	loading bool
	err     error
}

// NewConnectionDirectory 创建连接目录
func NewConnectionDirectory() *ConnectionDirectory {
	return &ConnectionDirectory{
		meta: model.PageMeta{Page: 1, Limit: 20},
	}
}

// BeginLoad 标记一次列表加载开始
func (d *ConnectionDirectory) BeginLoad() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = true
	d.err = nil
}

// ApplyPage 应用已返回的连接页，第 1 页替换整个列表
func (d *ConnectionDirectory) ApplyPage(connections []model.User, meta model.PageMeta) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.loading = false
	d.err = nil
	d.meta = meta

	batch := make([]model.User, len(connections))
	copy(batch, connections)
	if meta.Page <= 1 {
		d.list = batch
	} else {
		d.list = append(d.list, batch...)
	}
}

// FailLoad 标记列表加载失败
func (d *ConnectionDirectory) FailLoad(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	d.err = err
}

// Add 新增连接（请求被接受后），已存在时不重复
func (d *ConnectionDirectory) Add(user model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.list {
		if d.list[i].ID == user.ID {
			return
		}
	}
	d.list = append(d.list, user)
	d.meta.Total++
}

// Remove 移除连接
func (d *ConnectionDirectory) Remove(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.list {
		if d.list[i].ID == userID {
			d.list = append(d.list[:i], d.list[i+1:]...)
			d.meta.Total--
			return
		}
	}
}

// List 连接列表快照
func (d *ConnectionDirectory) List() []model.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.User, len(d.list))
	copy(out, d.list)
	return out
}

// Meta 当前分页元信息
func (d *ConnectionDirectory) Meta() model.PageMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta
}

// Loading 列表加载是否进行中
func (d *ConnectionDirectory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// LoadError 最近一次列表加载错误
func (d *ConnectionDirectory) LoadError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}
