package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/api"
)

func roundTrip(t *testing.T, addr string, payload []byte) api.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(payload)
	assert.NoError(t, err)
	assert.NoError(t, conn.(*net.TCPConn).CloseWrite())

	var resp api.Response
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_Serve(t *testing.T) {
	s := newTestService(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(s.Service, 2, s.metrics, zap.NewNop()).Serve(ctx, listener) }()

	addr := listener.Addr().String()

	resp := roundTrip(t, addr, []byte(`{"type":"ping"}`))
	check.True(t, resp.Success)
	check.Equal(t, "ping_response", resp.Type)

	req, err := json.Marshal(api.Request{Type: api.TypeAuction, Caller: testSeller, Lot: fixedPriceLot()})
	assert.NoError(t, err)
	resp = roundTrip(t, addr, req)
	check.True(t, resp.Success)
	result, ok := resp.Result.(map[string]any)
	assert.True(t, ok)
	check.Equal(t, any(float64(0)), result["lot_id"])

	resp = roundTrip(t, addr, []byte(`{"type":`))
	check.False(t, resp.Success)
	check.Equal(t, "error", resp.Type)
	check.Equal(t, "invalid_params", resp.Kind)

	cancel()
	check.True(t, errors.Is(<-done, context.Canceled))
}
