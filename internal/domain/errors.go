package domain

import "errors"

// ErrNotFound возвращается репозиториями, когда запись отсутствует или
// не принадлежит адресованному владельцу.
var ErrNotFound = errors.New("запись не найдена")
