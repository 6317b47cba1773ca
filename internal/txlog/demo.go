package txlog

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const demoEntries = 15

type demoSource struct {
	router  common.Address
	factory common.Address
}

var demoCounterparts = []string{"USDC", "WETH", "DAI", "LINK"}

// entries generates a fixed sample history for account: one transaction an
// hour, cycling through swap, add and remove.
func (d *demoSource) entries(account common.Address, now time.Time) []Entry {
	out := make([]Entry, 0, demoEntries)
	for i := 0; i < demoEntries; i++ {
		var seed [8]byte
		binary.BigEndian.PutUint64(seed[:], uint64(i))
		hash := crypto.Keccak256Hash(account.Bytes(), seed[:])

		e := Entry{
			Hash:      hash,
			Timestamp: now.Add(-time.Duration(i) * time.Hour).UnixMilli(),
			From:      account,
			Value:     fmt.Sprintf("%.1f", 0.1*float64(i+1)),
			TokenA:    "ETH",
			TokenB:    demoCounterparts[i%len(demoCounterparts)],
			AmountA:   fmt.Sprintf("%.1f", 0.1*float64(i+1)),
			AmountB:   fmt.Sprintf("%d", 10*(i+1)),
			Status:    StatusSuccess,
		}
		switch i % 3 {
		case 0:
			e.Type, e.To, e.MethodName = TypeSwap, d.router, "swapExactETHForTokens"
		case 1:
			e.Type, e.To, e.MethodName = TypeAddLiquidity, d.factory, "addLiquidityETH"
		default:
			e.Type, e.To, e.MethodName = TypeRemoveLiquidity, d.factory, "removeLiquidityETH"
		}
		switch {
		case i%5 == 0:
			e.Status = StatusPending
		case i%7 == 0:
			e.Status = StatusFailed
		}
		out = append(out, e)
	}
	return out
}
