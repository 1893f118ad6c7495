// internal/storage/errors.go

package storage

import "errors"

var (
	// ErrRecordNotFound 代表該 node_id 尚未佈建餘額紀錄。
	ErrRecordNotFound = errors.New("balance record not found")

	// ErrRecordExists 代表佈建時紀錄已存在。
	ErrRecordExists = errors.New("balance record already exists")
)
