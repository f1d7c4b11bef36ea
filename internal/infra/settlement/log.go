package settlement

import (
	"context"
	"reviewq/internal/domain"
	"reviewq/internal/ports"

	"github.com/rs/zerolog/log"
)

var _ ports.Settler = LogSettler{}

// LogSettler only records payouts. Used when no settlement service is configured.
type LogSettler struct{}

func (LogSettler) Settle(ctx context.Context, p domain.Payout) error {
	log.Ctx(ctx).Warn().
		Str("payout_id", p.ID).
		Uint64("amount", p.Amount).
		Str("account", p.Account).
		Msg("no settlement service configured, payout recorded only")
	return nil
}
