package exception

import "github.com/yanun0323/errors"

// Historical backfill errors
var (
	ErrHistoryNotConfigured = errors.New("history endpoint not configured")
	ErrPairUnsupported      = errors.New("pair not supported by history endpoint")
	ErrFetchInProgress      = errors.New("a fetch is already in progress")
	ErrInResponseError      = errors.New("there is an error in response error field")
)
