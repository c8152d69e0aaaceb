package main

import (
	"net/http"
	"testing"

	appconfig "github.com/salonware/booking-assistant/internal/config"
)

func TestNewServerAddrAndTimeouts(t *testing.T) {
	cfg := &appconfig.Config{Port: "8080"}
	mux := http.NewServeMux()

	srv := newServer(cfg, mux)
	if srv.Addr != ":8080" {
		t.Fatalf("expected addr :8080, got %s", srv.Addr)
	}
	if srv.Handler == nil {
		t.Fatalf("expected handler to be set")
	}
	if srv.ReadTimeout == 0 || srv.WriteTimeout == 0 || srv.IdleTimeout == 0 {
		t.Fatalf("expected all timeouts to be set")
	}
}
