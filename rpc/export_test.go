package rpc

import "context"

// GetForTest exposes raw GET requests to the external test package.
func (c *Client) GetForTest(ctx context.Context, path string, target interface{}) error {
	return c.get(ctx, path, nil, target)
}
