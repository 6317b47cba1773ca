package eth

import (
	"errors"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ErrUnexpectedOutput is returned when a contract call decodes to an
// unexpected number of values.
var ErrUnexpectedOutput = errors.New("unexpected contract output")

// IsRevert reports whether err is an execution revert reported by the node,
// as opposed to a transport or decoding failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var de gethrpc.DataError
	if errors.As(err, &de) && de.ErrorData() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// RevertReason extracts the Error(string) payload of a revert, if the node
// attached one to err.
func RevertReason(err error) (string, bool) {
	var de gethrpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	raw, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decErr := hexutil.Decode(raw)
	if decErr != nil {
		return "", false
	}
	reason, unpackErr := gethabi.UnpackRevert(data)
	if unpackErr != nil {
		return "", false
	}
	return reason, true
}
