package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

// SetChecker is the subset of go-redis used by SetMember. *redis.Client and
// *redis.ClusterClient satisfy it.
type SetChecker interface {
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
}

// SetMember builds an async rule that passes when the cell text is a
// member of the Redis set at key. Blank values pass without a round trip.
func SetMember(column string, rdb SetChecker, key, message string, opts ...Option) core.Rule {
	if message == "" {
		message = column + " nie je povolená hodnota"
	}
	return build(core.Rule{
		ID:      column + "_SetMember",
		Column:  column,
		Message: message,
		Timeout: core.DefaultRuleTimeout,
		Async: func(ctx context.Context, v core.Value, _ *core.Row) (bool, error) {
			if v.IsBlank() {
				return true, nil
			}
			ok, err := rdb.SIsMember(ctx, key, strings.TrimSpace(v.String())).Result()
			if err != nil {
				return false, fmt.Errorf("redis set %s: %w", key, err)
			}
			return ok, nil
		},
	}, opts)
}
