package credit

import "errors"

var (
	ErrNilState               = errors.New("credit: state not configured")
	ErrNilPool                = errors.New("credit: pool distributor not configured")
	ErrInvalidAmount          = errors.New("credit: amount must be positive")
	ErrRecordNotFound         = errors.New("credit: record not found")
	ErrRecordExists           = errors.New("credit: record already exists")
	ErrInsufficientCredit     = errors.New("credit: insufficient available credit")
	ErrInvalidState           = errors.New("credit: invalid state transition")
	ErrReceivableNotFound     = errors.New("credit: receivable not found")
	ErrInvalidReceivableState = errors.New("credit: invalid receivable state")
	ErrMaturityExceeded       = errors.New("credit: receivable maturity exceeded")
	ErrNotEligibleForDefault  = errors.New("credit: missed-period threshold not reached")
	ErrReceivableRequired     = errors.New("credit: drawdown requires an approved receivable")
)
