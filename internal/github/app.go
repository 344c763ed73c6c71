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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// GitHub rejects assertions that live longer than 10 minutes. The assertion
	// is backdated and kept under the cap so clock drift does not invalidate it.
	appTokenBackdate = 60 * time.Second
	appTokenLifetime = 9 * time.Minute
)

// NewAppClient creates an app transport. The RS256 assertion is minted once,
// at construction, from the app identifier and PEM-encoded private key.
func NewAppClient(appID int64, privateKey []byte, opts ...Option) (*Transport, error) {
	if appID == 0 || len(privateKey) == 0 {
		return nil, errors.New("github app id and private key are required")
	}

	o := buildOptions(opts)
	token, err := generateAppToken(appID, privateKey, o.now())
	if err != nil {
		return nil, err
	}

	return newTransport(token, o)
}

// generateAppToken signs the app assertion used as bearer token
func generateAppToken(appID int64, privateKey []byte, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKey)
	if err != nil {
		return "", fmt.Errorf("could not parse github app private key: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-appTokenBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appTokenLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("could not sign github app token: %w", err)
	}
	return signed, nil
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
