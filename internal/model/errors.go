package model

import "errors"

var (
	// ErrNotFound covers both absent rows and rows owned by another org.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyInstantiated is returned when a project already has its stages.
	ErrAlreadyInstantiated = errors.New("project stages already instantiated")
	// ErrInvalidInput wraps request values outside the allowed enums.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials 登录失败
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts 登录尝试次数过多
	ErrTooManyAttempts = errors.New("too many login attempts")
)
