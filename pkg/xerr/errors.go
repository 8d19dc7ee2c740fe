package xerr

import (
	"errors"
	"fmt"
)

// 错误码：recorder 的错误分类
const (
	OK                 = 200
	Transient          = 503 // 网络/超时/限流，可以重试
	DataValidation     = 422 // 数据为空或格式不对，按"无数据"处理
	Persistence        = 501 // 写库失败，整批回滚
	FatalConfiguration = 400 // 配置错误，运行前直接中止
	Unknown            = 500
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Err  error  `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.Err }

// Is 同码即相等，便于 errors.Is(err, xerr.NewErrCode(xerr.Transient))
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg || t.Msg == MapErrMsg(t.Code))
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 给底层错误打上错误码；err 为 nil 时返回 nil
func Wrap(code int, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, Err: err}
}

func NewTransient(err error, msg string) error   { return Wrap(Transient, err, msg) }
func NewValidation(err error, msg string) error  { return Wrap(DataValidation, err, msg) }
func NewPersistence(err error, msg string) error { return Wrap(Persistence, err, msg) }
func NewFatal(err error, msg string) error       { return Wrap(FatalConfiguration, err, msg) }

// Validationf 没有底层错误的数据校验失败
func Validationf(format string, args ...any) error {
	return &CodeError{Code: DataValidation, Msg: fmt.Sprintf(format, args...)}
}

// Fatalf 没有底层错误的配置错误
func Fatalf(format string, args ...any) error {
	return &CodeError{Code: FatalConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf 取链上第一个 CodeError 的码；nil 返回 OK，未分类返回 Unknown
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return Unknown
}

func IsTransient(err error) bool  { return CodeOf(err) == Transient }
func IsValidation(err error) bool { return CodeOf(err) == DataValidation }
func IsFatal(err error) bool      { return CodeOf(err) == FatalConfiguration }

func MapErrMsg(code int) string {
	switch code {
	case Transient:
		return "provider temporarily unavailable"
	case DataValidation:
		return "invalid or empty payload"
	case Persistence:
		return "store write failed"
	case FatalConfiguration:
		return "invalid configuration"
	default:
		return "unknown error"
	}
}
