package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("user already exists")
)
