package models

import "time"

// Group member roles.
const (
	GroupRoleLeader = "leader"
	GroupRoleMember = "member"
)

// Group statuses.
const (
	GroupStatusActive    = "active"
	GroupStatusDisbanded = "disbanded"
)

// Group is a student team formed for one project type. A student belongs to
// at most one active group per project type.
type Group struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	ProjectType ProjectType   `gorm:"size:16;not null;index" json:"project_type"`
	LeaderID    uint          `gorm:"not null" json:"leader_id"`
	Status      string        `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Members     []GroupMember `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"members"`
}

// HasMember reports whether the given student is part of the group.
func (g Group) HasMember(studentID uint) bool {
	for _, member := range g.Members {
		if member.StudentID == studentID {
			return true
		}
	}
	return false
}

// GroupMember links a student to a group with their in-group role.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Role      string    `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
	Student   User      `gorm:"foreignKey:StudentID" json:"-"`
}
