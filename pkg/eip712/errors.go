package eip712

import (
	"errors"
	"fmt"
)

// ErrEncoding 匹配摘要构建过程中的所有错误
var ErrEncoding = errors.New("eip712 encoding error")

// 编码错误类型
var (
	ErrUnknownType   = newKind("unknown type")
	ErrTypeMismatch  = newKind("type mismatch")
	ErrMissingField  = newKind("missing field")
	ErrCyclicType    = newKind("cyclic type reference")
	ErrInvalidSchema = newKind("invalid schema")
	ErrInvalidDomain = newKind("invalid domain")
)

type errorKind struct {
	msg string
}

func newKind(msg string) error { return &errorKind{msg: msg} }

func (k *errorKind) Error() string { return k.msg }

func (k *errorKind) Unwrap() error { return ErrEncoding }

// EncodingError 编码错误
// Kind 为上述 Err* 之一, Path 定位出错的类型或字段, 如 "Mail.to.wallet"、"Mail.items[2]"
type EncodingError struct {
	Kind   error
	Path   string
	Detail string
}

func (e *EncodingError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return "eip712: " + msg
}

func (e *EncodingError) Unwrap() error { return e.Kind }

func encodingErr(kind error, path, format string, args ...any) *EncodingError {
	return &EncodingError{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}
