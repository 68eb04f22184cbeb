package service

import (
	"errors"
	"fmt"
)

// 错误分类：handler 据此映射响应码，调用方只应重试 ErrTransient
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrTransient          = errors.New("transient failure")
)

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrFailedPrecondition)...)
}

func transientf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransient)...)
}
