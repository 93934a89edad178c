package pool

import "errors"

var (
	ErrNilState              = errors.New("pool: state not configured")
	ErrPoolDisabled          = errors.New("pool: pool disabled")
	ErrInvalidAmount         = errors.New("pool: amount must be positive")
	ErrCoverCapExceeded      = errors.New("pool: cover cap exceeded")
	ErrCoverNotFound         = errors.New("pool: cover not found")
	ErrUnknownTranche        = errors.New("pool: unknown tranche")
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
	ErrInsufficientFees      = errors.New("pool: insufficient accrued fees")
)
