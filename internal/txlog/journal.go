package txlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultCap is the maximum number of journaled transactions.
const DefaultCap = 50

// ReceiptSource fetches mined receipts. *ethclient.Client satisfies it.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Journal is the capped, newest-first transaction log backed by a Store.
type Journal struct {
	logger  *slog.Logger
	store   Store
	cap     int
	now     func() time.Time
	observe func(Type, Status)
	demo    *demoSource

	mu sync.Mutex
}

type Option func(*Journal)

// WithCap overrides the journal length.
func WithCap(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.cap = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithObserver registers a callback run for every recorded entry and status
// change.
func WithObserver(fn func(Type, Status)) Option {
	return func(j *Journal) { j.observe = fn }
}

// WithDemo makes List return generated sample entries for accounts with no
// history. It is meant for demos only.
func WithDemo(router, factory common.Address) Option {
	return func(j *Journal) { j.demo = &demoSource{router: router, factory: factory} }
}

func NewJournal(logger *slog.Logger, store Store, opts ...Option) *Journal {
	j := &Journal{
		logger:  logger,
		store:   store,
		cap:     DefaultCap,
		now:     time.Now,
		observe: func(Type, Status) {},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Record prepends e, replacing any earlier entry with the same hash, and
// trims the journal to its cap.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.Hash == (common.Hash{}) {
		return ErrMissingHash
	}
	if e.Timestamp == 0 {
		e.Timestamp = j.now().UnixMilli()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.Type == "" {
		e.Type = TypeUnknown
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.store.Load(ctx)
	if err != nil {
		return err
	}
	next := make([]Entry, 0, len(entries)+1)
	next = append(next, e)
	for _, old := range entries {
		if old.Hash != e.Hash {
			next = append(next, old)
		}
	}
	if len(next) > j.cap {
		next = next[:j.cap]
	}
	if err := j.store.Save(ctx, next); err != nil {
		return err
	}
	j.observe(e.Type, e.Status)
	j.logger.Debug("transaction recorded", "hash", e.Hash.Hex(), "type", string(e.Type))
	return nil
}

// SetStatus updates the status of a journaled transaction. reason is kept for
// failed transactions.
func (j *Journal) SetStatus(ctx context.Context, hash common.Hash, status Status, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.store.Load(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].Hash != hash {
			continue
		}
		entries[i].Status = status
		if status == StatusFailed {
			entries[i].Reason = reason
		}
		if err := j.store.Save(ctx, entries); err != nil {
			return err
		}
		j.observe(entries[i].Type, status)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
}

// List returns entries sent from account (all accounts if zero) of the given
// type (all types if empty), newest first.
func (j *Journal) List(ctx context.Context, account common.Address, typ Type) ([]Entry, error) {
	j.mu.Lock()
	entries, err := j.store.Load(ctx)
	j.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := filter(entries, account, typ)
	if len(out) == 0 && j.demo != nil && account != (common.Address{}) {
		out = filter(j.demo.entries(account, j.now()), account, typ)
	}
	return out, nil
}

func filter(entries []Entry, account common.Address, typ Type) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if account != (common.Address{}) && e.From != account {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Reconcile checks every pending entry against its receipt. Transactions not
// yet mined stay pending. Receipts are fetched without holding the journal,
// so Record is not blocked. It returns the number of entries updated.
func (j *Journal) Reconcile(ctx context.Context, src ReceiptSource) (int, error) {
	j.mu.Lock()
	entries, err := j.store.Load(ctx)
	j.mu.Unlock()
	if err != nil {
		return 0, err
	}

	receipts := make(map[common.Hash]*types.Receipt)
	for _, e := range entries {
		if e.Status != StatusPending {
			continue
		}
		receipt, err := src.TransactionReceipt(ctx, e.Hash)
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			j.logger.Warn("receipt lookup failed", "hash", e.Hash.Hex(), "err", err)
			continue
		}
		receipts[e.Hash] = receipt
	}
	if len(receipts) == 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	// reload: entries may have been recorded or updated meanwhile
	entries, err = j.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	var changed []Entry
	for i := range entries {
		e := &entries[i]
		receipt, ok := receipts[e.Hash]
		if !ok || e.Status != StatusPending {
			continue
		}
		e.Status = StatusFailed
		if receipt.Status == types.ReceiptStatusSuccessful {
			e.Status = StatusSuccess
		} else if e.Reason == "" {
			e.Reason = "Transaction reverted on-chain."
		}
		if receipt.BlockNumber != nil {
			e.BlockNumber = receipt.BlockNumber.Uint64()
		}
		e.GasUsed = receipt.GasUsed
		changed = append(changed, *e)
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := j.store.Save(ctx, entries); err != nil {
		return 0, err
	}
	for _, e := range changed {
		j.observe(e.Type, e.Status)
	}
	j.logger.Info("journal reconciled", "updated", len(changed))
	return len(changed), nil
}
