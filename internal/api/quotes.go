package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/quotesync/internal/model"
)

const quotesPath = "/dashboard/quotes"

// FetchDefaultQuotes fetches quotes for the server-chosen default symbols,
// optionally limited to one market.
func (c *Client) FetchDefaultQuotes(ctx context.Context, market model.Market) ([]model.Quote, error) {
	query := url.Values{}
	if market != "" {
		query.Set("market", string(market))
	}

	var resp model.QuotesResponse
	if err := c.get(ctx, quotesPath, query, &resp); err != nil {
		return nil, fmt.Errorf("get default quotes: %w", err)
	}

	return resp.Quotes, nil
}

// FetchCustomQuotes fetches quotes for an explicit watch set.
func (c *Client) FetchCustomQuotes(ctx context.Context, ws model.WatchSet) ([]model.Quote, error) {
	var resp model.QuotesResponse
	if err := c.post(ctx, quotesPath, ws, &resp); err != nil {
		return nil, fmt.Errorf("post custom quotes (%d symbols): %w", len(ws), err)
	}

	return resp.Quotes, nil
}

// FetchQuotes picks the default or explicit variant based on whether ws is empty.
func (c *Client) FetchQuotes(ctx context.Context, ws model.WatchSet) ([]model.Quote, error) {
	if len(ws) == 0 {
		return c.FetchDefaultQuotes(ctx, "")
	}
	return c.FetchCustomQuotes(ctx, ws)
}
