// Package txlog keeps a capped local journal of submitted transactions. The
// journal is a display convenience; the chain is authoritative for status.
package txlog

import (
	"github.com/ethereum/go-ethereum/common"
)

// Type classifies a journal entry.
type Type string

const (
	TypeSwap            Type = "swap"
	TypeAddLiquidity    Type = "add_liquidity"
	TypeRemoveLiquidity Type = "remove_liquidity"
	TypeApprove         Type = "approve"
	TypeUnknown         Type = "unknown"
)

// Status of a journaled transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one journaled transaction. Timestamp is in unix milliseconds.
type Entry struct {
	Hash        common.Hash    `json:"hash"`
	Timestamp   int64          `json:"timestamp"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Value       string         `json:"value"`
	Type        Type           `json:"type"`
	TokenA      string         `json:"tokenA,omitempty"`
	TokenB      string         `json:"tokenB,omitempty"`
	AmountA     string         `json:"amountA,omitempty"`
	AmountB     string         `json:"amountB,omitempty"`
	Status      Status         `json:"status"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	GasUsed     uint64         `json:"gasUsed,omitempty"`
	MethodName  string         `json:"methodName,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}
