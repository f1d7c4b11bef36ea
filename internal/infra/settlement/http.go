package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"time"
)

var _ ports.Settler = (*HTTPSettler)(nil)

// HTTPSettler posts each payout to the settlement service. The payout id is
// sent as the idempotency key so redelivered payouts are not paid twice.
type HTTPSettler struct {
	URL    string
	Client *http.Client
}

func NewHTTPSettler(url string, timeout time.Duration) *HTTPSettler {
	return &HTTPSettler{URL: url, Client: &http.Client{Timeout: timeout}}
}

type settleRequest struct {
	PayoutID string `json:"payout_id"`
	ReviewID uint64 `json:"review_id"`
	TaskID   uint64 `json:"task_id"`
	Amount   uint64 `json:"amount"`
	Account  string `json:"account"`
}

func (s *HTTPSettler) Settle(ctx context.Context, p domain.Payout) error {
	body, err := json.Marshal(settleRequest{
		PayoutID: p.ID,
		ReviewID: p.ReviewID,
		TaskID:   p.TaskID,
		Amount:   p.Amount,
		Account:  p.Account,
	})
	if err != nil {
		return fmt.Errorf("marshal settlement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.ID)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("settlement service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("settlement service returned status %d", resp.StatusCode)
	}
	return nil
}
