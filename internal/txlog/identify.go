package txlog

import (
	"errors"
	"strings"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
)

// Identify classifies router or token call data by its method selector.
func Identify(data []byte) (Type, string) {
	if len(data) < 4 {
		return TypeUnknown, ""
	}
	if m, err := eth.RouterABI.MethodById(data[:4]); err == nil {
		return typeOf(m.Name), m.Name
	}
	if m, err := eth.ERC20ABI.MethodById(data[:4]); err == nil && m.Name == "approve" {
		return TypeApprove, m.Name
	}
	return TypeUnknown, ""
}

func typeOf(method string) Type {
	switch {
	case strings.HasPrefix(method, "swap"):
		return TypeSwap
	case strings.HasPrefix(method, "addLiquidity"):
		return TypeAddLiquidity
	case strings.HasPrefix(method, "removeLiquidity"):
		return TypeRemoveLiquidity
	}
	return TypeUnknown
}

const genericFailure = "There was an error during the transaction. Please try again."

// FailureReason turns a submission or execution error into a message for the
// user: the revert reason when the node returned one, otherwise a mapped
// description of common failures.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	if reason, ok := eth.RevertReason(err); ok && reason != "" {
		return reason
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient"):
		return "Insufficient balance for this swap."
	case strings.Contains(lower, "expired"):
		return "The transaction deadline has expired. Please try again."
	case strings.Contains(lower, "slippage"):
		return "Price moved unfavorably beyond slippage tolerance."
	case strings.Contains(lower, "decimals"), strings.Contains(msg, "NUMERIC_FAULT"):
		return "Numeric precision error. Try with a different amount."
	}
	return genericFailure
}

// FailureMessage is FailureReason for an error reported as text, e.g. by a
// wallet.
func FailureMessage(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return genericFailure
	}
	return FailureReason(errors.New(msg))
}
