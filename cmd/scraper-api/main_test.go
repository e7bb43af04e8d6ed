package main

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ListenFailureReturnsError(t *testing.T) {
	chdir(t, t.TempDir())

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", strconv.Itoa(busy.Addr().(*net.TCPAddr).Port))
	t.Setenv("LOG_LEVEL", "error")

	err = run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestRun_StopsOnCancel(t *testing.T) {
	chdir(t, t.TempDir())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", strconv.Itoa(port))
	t.Setenv("LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, "") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCRAPER_PRODUCT_CAP", "0")

	err := run(context.Background(), "")
	assert.Error(t, err)
}
