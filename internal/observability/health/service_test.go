package health

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func waitForHTTP(ctx context.Context, url string) (*http.Response, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		reqCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
		if err != nil {
			cancel()
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		cancel()
		if err == nil {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func TestApplyEnableDisable(t *testing.T) {
	srv := New(logx.Nop())
	t.Cleanup(func() { srv.Stop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	srv.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})

	addr := srv.Addr()
	if addr == "" {
		t.Fatal("expected health server to expose address")
	}

	resp, err := waitForHTTP(ctx, "http://"+addr+"/health")
	if err != nil {
		t.Fatalf("health endpoint not reachable: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("got %d %q, want 200 OK", resp.StatusCode, body)
	}

	srv.Apply(ctx, Config{Enabled: false})
	if addr := srv.Addr(); addr != "" {
		t.Fatalf("expected health server to stop, still at %s", addr)
	}
}

func TestKeepAliveNoURLReturns(t *testing.T) {
	t.Parallel()
	srv := New(logx.Nop())
	srv.Apply(context.Background(), Config{Enabled: false})

	done := make(chan struct{})
	go func() {
		srv.KeepAlive(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("KeepAlive without a URL must return immediately")
	}
}
