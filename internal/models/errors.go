package models

import "errors"

// ErrNotFound is wrapped by data-access errors when a requested row does not exist
var ErrNotFound = errors.New("not found")
