package token

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/sync/singleflight"
)

// List is the token list feed document.
type List struct {
	Name    string      `json:"name"`
	Version Version     `json:"version"`
	Tokens  []listEntry `json:"tokens"`
}

type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// listEntry keeps the address as a string: feeds sometimes carry symbolic
// addresses for the native currency.
type listEntry struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// Result is the outcome of a list fetch. Fallback is set when the feed could
// not be loaded and only the native entry is offered.
type Result struct {
	Name     string  `json:"name"`
	Version  Version `json:"version"`
	Tokens   []Token `json:"tokens"`
	Fallback bool    `json:"fallback"`
}

// Find returns the entry whose address matches addr.
func (r Result) Find(addr common.Address) (Token, bool) {
	for _, t := range r.Tokens {
		if !t.Native && t.Address == addr {
			return t, true
		}
	}
	return Token{}, false
}

// Lister fetches the token list once per process and falls back to a
// native-only list when the feed is unreachable. A failed load is retried
// only after the cooldown.
type Lister struct {
	logger     *slog.Logger
	url        string
	chainID    uint64
	native     Token
	httpClient *http.Client
	backOff    func() backoff.BackOff
	attempts   uint
	loadWait   time.Duration
	cooldown   time.Duration
	now        func() time.Time
	onFallback func()

	group singleflight.Group

	mu       sync.Mutex
	cached   *Result
	failedAt time.Time
}

type ListerOption func(*Lister)

// WithHTTPClient replaces the client used for feed requests.
func WithHTTPClient(c *http.Client) ListerOption {
	return func(l *Lister) { l.httpClient = c }
}

// WithBackOff replaces the retry schedule between attempts.
func WithBackOff(fn func() backoff.BackOff) ListerOption {
	return func(l *Lister) { l.backOff = fn }
}

// WithFallbackHook registers a callback run every time a load fails and the
// fallback list is adopted.
func WithFallbackHook(fn func()) ListerOption {
	return func(l *Lister) { l.onFallback = fn }
}

// WithCooldown sets how long a failed load is served from the fallback list
// before the feed is tried again.
func WithCooldown(d time.Duration) ListerOption {
	return func(l *Lister) { l.cooldown = d }
}

// WithLoadTimeout bounds a whole load, retries included.
func WithLoadTimeout(d time.Duration) ListerOption {
	return func(l *Lister) { l.loadWait = d }
}

func withListClock(now func() time.Time) ListerOption {
	return func(l *Lister) { l.now = now }
}

func NewLister(logger *slog.Logger, url string, chainID uint64, native Token, opts ...ListerOption) *Lister {
	l := &Lister{
		logger:     logger,
		url:        url,
		chainID:    chainID,
		native:     native,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		attempts: 3,
		loadWait: 45 * time.Second,
		cooldown: time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cached returns the list loaded so far without touching the network. Before
// the first successful load it is the fallback list.
func (l *Lister) Cached() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil {
		return *l.cached
	}
	return l.fallback()
}

// Fetch returns the token list with the native entry first. It never fails:
// on error the built-in list is returned with Fallback set. Concurrent calls
// share one load, which runs detached from ctx under its own timeout; a
// caller whose ctx ends first gets the cached list.
func (l *Lister) Fetch(ctx context.Context) Result {
	l.mu.Lock()
	switch {
	case l.cached != nil:
		res := *l.cached
		l.mu.Unlock()
		return res
	case !l.failedAt.IsZero() && l.now().Sub(l.failedAt) < l.cooldown:
		l.mu.Unlock()
		return l.fallback()
	}
	l.mu.Unlock()

	ch := l.group.DoChan("list", func() (any, error) {
		return l.load(context.WithoutCancel(ctx)), nil
	})
	select {
	case r := <-ch:
		return r.Val.(Result)
	case <-ctx.Done():
		return l.Cached()
	}
}

func (l *Lister) load(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, l.loadWait)
	defer cancel()

	list, err := l.download(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.failedAt = l.now()
		l.logger.Warn("token list unavailable, using built-in list", "url", l.url, "err", err, "retry_in", l.cooldown)
		if l.onFallback != nil {
			l.onFallback()
		}
		return l.fallback()
	}

	res := l.normalize(list)
	l.cached = &res
	l.logger.Info("token list loaded", "name", res.Name, "tokens", len(res.Tokens))
	return res
}

func (l *Lister) fallback() Result {
	return Result{
		Name:     "Default",
		Tokens:   []Token{l.native},
		Fallback: true,
	}
}

func (l *Lister) download(ctx context.Context) (*List, error) {
	if l.url == "" {
		return nil, fmt.Errorf("no token list url configured")
	}
	op := func() (*List, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("token list: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("token list: status %d", resp.StatusCode))
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var list List
		if err := sonnet.Unmarshal(body, &list); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode token list: %w", err))
		}
		return &list, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(l.backOff()),
		backoff.WithMaxTries(l.attempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			l.logger.Debug("retrying token list fetch", "err", err, "in", d)
		}),
	)
}

// normalize keeps entries for the configured chain with valid addresses, drops
// any entry shadowing the native symbol and puts the native entry first.
func (l *Lister) normalize(list *List) Result {
	tokens := make([]Token, 0, len(list.Tokens)+1)
	tokens = append(tokens, l.native)
	seen := make(map[common.Address]struct{}, len(list.Tokens))
	for _, e := range list.Tokens {
		if strings.EqualFold(e.Symbol, l.native.Symbol) {
			continue
		}
		if e.ChainID != 0 && l.chainID != 0 && e.ChainID != l.chainID {
			continue
		}
		if !common.IsHexAddress(e.Address) {
			l.logger.Debug("skipping token list entry", "symbol", e.Symbol, "address", e.Address)
			continue
		}
		addr := common.HexToAddress(e.Address)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		tokens = append(tokens, Token{
			ChainID:  e.ChainID,
			Address:  addr,
			Symbol:   e.Symbol,
			Name:     e.Name,
			Decimals: e.Decimals,
			LogoURI:  e.LogoURI,
		})
	}
	return Result{Name: list.Name, Version: list.Version, Tokens: tokens}
}
