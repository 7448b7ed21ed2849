package model

// PageMeta 分页元信息（REST 与各 store 共用同一约定）
// page 从 1 开始
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// HasMore 是否还有后续页
func (m PageMeta) HasMore() bool {
	return m.Page*m.Limit < m.Total
}
