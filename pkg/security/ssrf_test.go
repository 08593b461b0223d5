package security

import (
	"net"
	"strings"
	"testing"
)

func TestEndpointGuard_CheckURL(t *testing.T) {
	guard := NewModelEndpointGuard()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "localhost", url: "http://localhost:11434"},
		{name: "loopback ip", url: "http://127.0.0.1:11434/api/generate"},
		{name: "compose service name", url: "http://ollama:11434"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: "scheme"},
		{name: "gopher scheme", url: "gopher://localhost", wantErr: "scheme"},
		{name: "host not listed", url: "http://example.com", wantErr: "allowlist"},
		{name: "metadata address", url: "http://169.254.169.254/latest/meta-data", wantErr: "allowlist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.CheckURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckURL(%q) = %v, want error containing %q", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestEndpointGuard_CheckIP(t *testing.T) {
	guard := NewEndpointGuard(DefaultEndpointPolicy())

	tests := []struct {
		ip      string
		listed  bool
		wantErr bool
	}{
		{"127.0.0.1", false, false},
		{"::1", false, false},
		{"169.254.169.254", true, true},
		{"169.254.10.10", true, true},
		{"224.0.0.1", false, true},
		{"10.0.0.5", false, true},
		{"10.0.0.5", true, false},
		{"192.168.1.20", false, true},
		{"8.8.8.8", false, false},
	}
	for _, tt := range tests {
		err := guard.checkIP(net.ParseIP(tt.ip), tt.listed)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkIP(%s, listed=%v) = %v, wantErr %v", tt.ip, tt.listed, err, tt.wantErr)
		}
	}
}

func TestEndpointGuard_NoLoopback(t *testing.T) {
	p := DefaultEndpointPolicy()
	p.AllowLoopback = false
	guard := NewEndpointGuard(p)
	if err := guard.checkIP(net.ParseIP("127.0.0.1"), false); err == nil {
		t.Error("loopback should be rejected when not allowed")
	}
}

func TestModelHostAllowlist(t *testing.T) {
	t.Setenv("OLLAMA_ALLOWED_HOSTS", "gpu-box, inference.internal ,")

	hosts := ModelHostAllowlist("model-host")
	want := []string{"localhost", "ollama", "model-host", "gpu-box", "inference.internal"}
	for _, w := range want {
		found := false
		for _, h := range hosts {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("allowlist %v missing %q", hosts, w)
		}
	}
	for _, h := range hosts {
		if h == "" {
			t.Error("allowlist contains an empty host")
		}
	}
}

func TestEndpointGuard_Transport(t *testing.T) {
	tr := NewModelEndpointGuard().Transport()
	if tr.DialContext == nil {
		t.Fatal("transport has no guarded dialer")
	}
	_, err := tr.DialContext(t.Context(), "tcp", "example.com:80")
	if err == nil || !strings.Contains(err.Error(), "connection blocked") {
		t.Errorf("dial to unlisted host = %v, want blocked", err)
	}
}
