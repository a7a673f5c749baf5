package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/newthinker/stratdesk/internal/core"
)

// ListStrategies returns every strategy visible to the current user.
func (c *Client) ListStrategies(ctx context.Context) ([]core.Strategy, error) {
	var strategies []core.Strategy
	if err := c.doJSON(ctx, http.MethodGet, "/strategies", nil, &strategies); err != nil {
		return nil, err
	}
	if strategies == nil {
		strategies = []core.Strategy{}
	}
	return strategies, nil
}

// GetStrategy fetches a single strategy by id.
func (c *Client) GetStrategy(ctx context.Context, id int) (*core.Strategy, error) {
	var s core.Strategy
	if err := c.doJSON(ctx, http.MethodGet, strategyPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStrategy stores a new strategy and returns it as the backend saved it.
func (c *Client) CreateStrategy(ctx context.Context, in core.StrategyInput) (*core.Strategy, error) {
	var s core.Strategy
	if err := c.doJSON(ctx, http.MethodPost, "/strategies", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStrategy replaces a strategy's fields. The backend bumps its version.
func (c *Client) UpdateStrategy(ctx context.Context, id int, in core.StrategyInput) (*core.Strategy, error) {
	var s core.Strategy
	if err := c.doJSON(ctx, http.MethodPut, strategyPath(id), in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteStrategy removes a strategy.
func (c *Client) DeleteStrategy(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, strategyPath(id), nil, nil)
}

func strategyPath(id int) string {
	return fmt.Sprintf("/strategies/%d", id)
}
