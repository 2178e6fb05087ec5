package gitsource

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/interpose/pkg/config"
)

func TestNewAuthProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.GitAuthConfig
		wantType string
		wantErr  bool
	}{
		{name: "empty type is anonymous", cfg: config.GitAuthConfig{}, wantType: "none"},
		{name: "none", cfg: config.GitAuthConfig{Type: "none"}, wantType: "none"},
		{name: "token", cfg: config.GitAuthConfig{Type: "token", Token: "abc"}, wantType: "token"},
		{name: "token without value", cfg: config.GitAuthConfig{Type: "token"}, wantErr: true},
		{name: "ssh", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/keys/id"}, wantType: "ssh"},
		{name: "ssh without key", cfg: config.GitAuthConfig{Type: "ssh"}, wantErr: true},
		{name: "unknown", cfg: config.GitAuthConfig{Type: "ldap"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAuthProvider(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAuthProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", p.Type(), tt.wantType)
			}
		})
	}
}

func TestTokenAuth_Auth(t *testing.T) {
	auth, err := (&TokenAuth{token: "abc"}).Auth()
	if err != nil {
		t.Fatalf("Auth() error = %v", err)
	}
	if auth == nil || auth.Name() != "http-basic-auth" {
		t.Errorf("Auth() = %v, want basic auth", auth)
	}
	if _, err := (&TokenAuth{}).Auth(); err == nil {
		t.Error("Auth() with empty token error = nil")
	}
}

func TestNoAuth_Auth(t *testing.T) {
	auth, err := NoAuth{}.Auth()
	if err != nil || auth != nil {
		t.Errorf("Auth() = %v, %v, want nil, nil", auth, err)
	}
}

func TestSSHAuth_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "id_test")
	if err := os.WriteFile(key, []byte("not a key"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := (&SSHAuth{keyPath: key}).Auth(); err == nil {
		t.Error("Auth() with world-readable key error = nil")
	}
	if _, err := (&SSHAuth{keyPath: filepath.Join(dir, "missing")}).Auth(); err == nil {
		t.Error("Auth() with missing key error = nil")
	}

	if err := os.Chmod(key, 0o600); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}
	if _, err := (&SSHAuth{keyPath: key}).Auth(); err == nil {
		t.Error("Auth() with invalid key content error = nil")
	}
}
