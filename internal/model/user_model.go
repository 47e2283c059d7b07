package model

import "time"

// UserModel 用户（由身份服务同步，本服务只读取）
type UserModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Username string `json:"username" gorm:"not null"`
	IsStaff  bool   `json:"is_staff" gorm:"default:false"`
	IsAdmin  bool   `json:"is_admin" gorm:"default:false"`
}

func (UserModel) TableName() string {
	return "users"
}
