package domain

import (
	"time"
)

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban ,3=delete
const (
	// MemberStatusOffLine 使用者離線
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine 使用者在線
	MemberStatusOnLine
	// MemberStatusBan 用來表示使用者狀態為封鎖
	MemberStatusBan
	// MemberStatusDelete 用來表示使用者狀態為刪除
	MemberStatusDelete
)

// Member 用來表示使用者
type Member struct {
	ID       int64
	MemberID string
	Name     string
	Username string
	Status   MemberStatus
	LastSeen *time.Time
}

// MemberSession 用來表示使用者的 Session, 由 member service 登入時寫入 redis
type MemberSession struct {
	Token        string    `json:"Token"`
	MemberID     string    `json:"MemberID"`
	CreatedAt    time.Time `json:"CreatedAt"`
	LastActivity time.Time `json:"LastActivity"`
	ExpiredAt    time.Time `json:"ExpiredAt"`
}

// IsOnline status == online
func (m *Member) IsOnline() bool {
	return m.Status == MemberStatusOnLine
}

// CanConnect banned / deleted member 不能建立連線
func (m *Member) CanConnect() bool {
	return m.Status == MemberStatusOffLine || m.Status == MemberStatusOnLine
}

// IsExpired 檢查 Session 是否已過期
func (s *MemberSession) IsExpired() bool {
	return time.Now().After(s.ExpiredAt)
}
