package model

// User 用户摘要信息（会话参与者、连接列表等场景显示）
type User struct {
	ID         string   `json:"_id"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Email      string   `json:"email,omitempty"`
	ProfileURL string   `json:"profileUrl,omitempty"`
	About      string   `json:"about,omitempty"`
	Skills     []string `json:"skills,omitempty"`
}

// FullName 拼接显示名
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
