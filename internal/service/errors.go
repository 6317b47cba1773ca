package service

import "errors"

var (
	ErrSameToken     = errors.New("src and dst are equal")
	ErrEmptyReserves = errors.New("empty reserves")

	ErrAccountRequired     = errors.New("account is required")
	ErrAmountRequired      = errors.New("amount must be greater than zero")
	ErrNoLiquidity         = errors.New("pool has no liquidity")
	ErrEstimateUnavailable = errors.New("estimate unavailable")
	ErrNoPosition          = errors.New("account has no liquidity in pair")
	ErrInvalidPercent      = errors.New("percent must be between 1 and 100")
	// ErrApprovalRequired is reported through TxPlan.NeedsApproval when the
	// router's allowance does not cover the amount spent.
	ErrApprovalRequired = errors.New("token approval required")
	ErrWouldRevert      = errors.New("transaction would revert")
)
