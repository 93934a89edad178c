package epoch

import "errors"

var (
	ErrNilState           = errors.New("epoch: state not configured")
	ErrNilPool            = errors.New("epoch: pool ledger not configured")
	ErrInvalidAmount      = errors.New("epoch: amount must be positive")
	ErrInsufficientShares = errors.New("epoch: insufficient share balance")
	ErrLenderNotFound     = errors.New("epoch: lender position not found")
	ErrEpochInProgress    = errors.New("epoch: prior epoch settlement incomplete")
	ErrUnknownTranche     = errors.New("epoch: unknown tranche")
)
