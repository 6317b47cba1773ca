// Package service holds the exchange logic behind the HTTP API and the CLI:
// swap estimation, liquidity balancing, position discovery and transaction
// building.
package service

import "log/slog"

// BaseService provides common dependencies for service types.
type BaseService struct {
	logger *slog.Logger
}

// newBase tags every record of a service with its component name.
func newBase(logger *slog.Logger, component string) BaseService {
	return BaseService{logger: logger.With("component", component)}
}
