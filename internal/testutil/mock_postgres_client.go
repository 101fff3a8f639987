package testutil

import (
	"context"

	"github.com/invopeak/fakturaserie/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient is a postgres client for testing service logic against
// in-memory stores. WithTx just runs the function; the in-memory stores
// apply writes immediately.
type MockPostgresClient struct{}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient() postgres.IClient {
	return &MockPostgresClient{}
}

func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (c *MockPostgresClient) Close() error {
	return nil
}
