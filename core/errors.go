package core

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindInputShape       ErrorKind = "input_shape"
	KindMissingReference ErrorKind = "missing_reference"
	KindNumericDomain    ErrorKind = "numeric_domain"
)

// 供 errors.Is 使用的哨兵错误，*Error 按 Kind 匹配对应的哨兵
var (
	ErrInputShape       = errors.New("input shape error")
	ErrMissingReference = errors.New("missing reference")
	ErrNumericDomain    = errors.New("numeric domain error")
)

// Error 嵌入/提取失败时返回的错误
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Is 按 Kind 匹配哨兵错误
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInputShape:
		return e.Kind == KindInputShape
	case ErrMissingReference:
		return e.Kind == KindMissingReference
	case ErrNumericDomain:
		return e.Kind == KindNumericDomain
	}
	return false
}

// IsKind 判断 err 是否为指定类型的 *Error
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func shapeError(op, format string, args ...any) error {
	return &Error{Kind: KindInputShape, Op: op, Message: fmt.Sprintf(format, args...)}
}

func domainError(op, format string, args ...any) error {
	return &Error{Kind: KindNumericDomain, Op: op, Message: fmt.Sprintf(format, args...)}
}

func missingReference(op string) error {
	return &Error{Kind: KindMissingReference, Op: op, Message: "no reference singular values in session"}
}

// LossyReshapeWarning 一维估计值长度不是完全平方数，重排为方阵时截断了尾部。
// 仅作提示，提取函数不会把它当作错误返回。
type LossyReshapeWarning struct {
	Length    int
	Side      int
	Discarded int
}

func (w *LossyReshapeWarning) Error() string {
	return fmt.Sprintf("lossy reshape: %d values truncated to %dx%d (%d discarded)", w.Length, w.Side, w.Side, w.Discarded)
}
