package exception

import "github.com/yanun0323/errors"

// Connector errors
var (
	ErrConnectionClose = errors.New("connection closed")
	ErrNoPair          = errors.New("no pair to watch")
	ErrPairNotMatched  = errors.New("pair did not match any product")
	ErrNilConnector    = errors.New("nil connector")
)
