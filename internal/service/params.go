package service

import (
	"strconv"
	"strings"

	"github.com/sakif/history-api/internal/repository"
)

const (
	DefaultListLimit = 50
	MinListLimit     = 1
	MaxListLimit     = 200
)

// ParseListParams resolves raw query values into list options.
//
// A non-numeric limit falls back to DefaultListLimit; a numeric one is
// clamped to [MinListLimit, MaxListLimit], so "-5" gives 1 and "abc" gives 50.
// offset falls back to 0 and never goes negative. Only an exact "asc"
// selects ascending order.
func ParseListParams(limit, offset, orderBy string) repository.ListOptions {
	opts := repository.ListOptions{
		Limit: DefaultListLimit,
		Order: repository.OrderDesc,
	}

	if n, err := strconv.Atoi(strings.TrimSpace(limit)); err == nil {
		opts.Limit = min(max(n, MinListLimit), MaxListLimit)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(offset)); err == nil && n > 0 {
		opts.Offset = n
	}
	if orderBy == "asc" {
		opts.Order = repository.OrderAsc
	}
	return opts
}
