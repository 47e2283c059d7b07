package logic

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind 业务错误类别
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
	KindExternal
)

// BizError 可直接返回给调用方的业务错误
type BizError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Cause   error
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

func ValidationError(field, message string) error {
	return &BizError{Kind: KindValidation, Field: field, Message: message}
}

func ForbiddenError(message string) error {
	return &BizError{Kind: KindForbidden, Message: message}
}

func NotFoundError(message string) error {
	return &BizError{Kind: KindNotFound, Message: message}
}

func ConflictError(message string) error {
	return &BizError{Kind: KindConflict, Message: message}
}

func ExternalError(message string, cause error) error {
	return &BizError{Kind: KindExternal, Message: message, Cause: cause}
}

// KindOf 返回错误类别，非业务错误返回 0
func KindOf(err error) ErrorKind {
	var be *BizError
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// notFoundOr 将 gorm 未找到转换为业务错误
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(message)
	}
	return err
}
