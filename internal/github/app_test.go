// MIT License
//
// Copyright (c) 2025 The bors-mg Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testPrivateKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemBytes
}

func TestGenerateAppToken(t *testing.T) {
	key, pemBytes := testPrivateKey(t)
	now := time.Now().Truncate(time.Second)

	signed, err := generateAppToken(12345, pemBytes, now)
	if err != nil {
		t.Fatalf("generateAppToken() unexpected error: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if !token.Valid {
		t.Fatalf("token should be valid")
	}

	if claims.Issuer != "12345" {
		t.Errorf("iss = %s, want 12345", claims.Issuer)
	}
	if got := claims.IssuedAt.Time; !got.Equal(now.Add(-60 * time.Second)) {
		t.Errorf("iat = %v, want %v", got, now.Add(-60*time.Second))
	}
	if got := claims.ExpiresAt.Time; !got.Equal(now.Add(9 * time.Minute)) {
		t.Errorf("exp = %v, want %v", got, now.Add(9*time.Minute))
	}
	if lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time); lifetime > 10*time.Minute {
		t.Errorf("token lifetime %v exceeds the 10 minute cap", lifetime)
	}
}

func TestNewAppClient(t *testing.T) {
	_, pemBytes := testPrivateKey(t)

	tests := []struct {
		name      string
		appID     int64
		key       []byte
		wantError bool
	}{
		{name: "Valid credentials", appID: 1, key: pemBytes},
		{name: "Missing app id", appID: 0, key: pemBytes, wantError: true},
		{name: "Missing key", appID: 1, key: nil, wantError: true},
		{name: "Malformed key", appID: 1, key: []byte("not a key"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewAppClient(tt.appID, tt.key)
			if tt.wantError && err == nil {
				t.Errorf("NewAppClient() expected error, got nil")
			}
			if !tt.wantError && (err != nil || client == nil) {
				t.Errorf("NewAppClient() = %v, %v", client, err)
			}
		})
	}
}

func TestAppClientSendsAssertion(t *testing.T) {
	_, pemBytes := testPrivateKey(t)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewAppClient(42, pemBytes, WithBaseURL(server.URL), withClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewAppClient() unexpected error: %v", err)
	}
	if err := client.Get(context.Background(), "app", nil); err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	if !strings.HasPrefix(auth, "Bearer ") {
		t.Fatalf("Authorization = %q, want bearer assertion", auth)
	}
	if parts := strings.Split(strings.TrimPrefix(auth, "Bearer "), "."); len(parts) != 3 {
		t.Errorf("bearer credential is not a JWT: %q", auth)
	}
}
