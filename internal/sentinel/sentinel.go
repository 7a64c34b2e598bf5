package sentinel

import "errors"

// Store-level facts shared by the Postgres and in-memory stores. Services
// translate them into their own errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrReference = errors.New("referenced record does not exist")
)
