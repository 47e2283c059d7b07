package logic

import "github.com/blues/campaignhub/internal/model"

// Actor 当前请求的操作者
type Actor struct {
	Id       int64
	Email    string
	Username string
	IsStaff  bool
	IsAdmin  bool
}

// Owned 有归属用户的资源
type Owned interface {
	OwnerId() int64
}

// ActorFromUser 由用户记录构造操作者
func ActorFromUser(u *model.UserModel) Actor {
	return Actor{
		Id:       u.Id,
		Email:    u.Email,
		Username: u.Username,
		IsStaff:  u.IsStaff,
		IsAdmin:  u.IsAdmin,
	}
}

// CanModify 只有资源所有者可以修改或删除
func CanModify(actor Actor, resource Owned) bool {
	return actor.Id != 0 && resource != nil && resource.OwnerId() == actor.Id
}

func requireOwner(actor Actor, resource Owned) error {
	if !CanModify(actor, resource) {
		return ForbiddenError("没有操作权限")
	}
	return nil
}

// RequireAdmin 管理员校验
func RequireAdmin(actor Actor) error {
	if !actor.IsAdmin {
		return ForbiddenError("需要管理员权限")
	}
	return nil
}
