package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// newTestClient spins up an embedded redis server for the duration of the
// test and returns a connected client.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := NewClientFromAddr(context.Background(), srv.Addr())
	if err != nil {
		t.Fatalf("connect to embedded redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
