package upstream

import (
	"errors"
	"testing"
)

func TestNewEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		wantErr bool
	}{
		{name: "default web port", host: "127.0.0.1", port: 8080},
		{name: "lowest port", host: "127.0.0.1", port: 1},
		{name: "highest port", host: "127.0.0.1", port: 65535},
		{name: "zero", host: "127.0.0.1", port: 0, wantErr: true},
		{name: "negative", host: "127.0.0.1", port: -1, wantErr: true},
		{name: "too large", host: "127.0.0.1", port: 65536, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := NewEndpoint(tt.host, tt.port)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPort) {
					t.Errorf("NewEndpoint() error = %v, want ErrInvalidPort", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEndpoint() unexpected error: %v", err)
			}
			if ep.Port != tt.port {
				t.Errorf("Port = %d, want %d", ep.Port, tt.port)
			}
		})
	}
}

func TestEndpoint_URL(t *testing.T) {
	ep, err := NewEndpoint("", 8080)
	if err != nil {
		t.Fatal(err)
	}

	if ep.Host != LoopbackHost {
		t.Errorf("Host = %q, want %q", ep.Host, LoopbackHost)
	}
	if got := ep.URL("/jsonrpc?request=x"); got != "http://127.0.0.1:8080/jsonrpc?request=x" {
		t.Errorf("URL() = %q", got)
	}
	if (Endpoint{}).IsZero() != true {
		t.Error("zero Endpoint should report IsZero")
	}
	if ep.IsZero() {
		t.Error("resolved Endpoint should not report IsZero")
	}
}
