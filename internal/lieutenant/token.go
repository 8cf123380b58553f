// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package lieutenant

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStatus summarizes the bearer token used to authenticate against
// Lieutenant, for "commodore login status". The token is decoded, not
// verified: Commodore is not the token's audience and holds no key to
// check its signature against, it only reports what the token claims.
type TokenStatus struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	Expired   bool
}

// InspectToken decodes the claims of a JWT bearer token without
// validating its signature or expiry.
func InspectToken(rawToken string) (TokenStatus, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, _, err := parser.ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return TokenStatus{}, fmt.Errorf("decoding token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenStatus{}, fmt.Errorf("decoding token: unexpected claims type")
	}

	status := TokenStatus{}
	if sub, err := claims.GetSubject(); err == nil {
		status.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		status.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		status.ExpiresAt = exp.Time
		status.Expired = exp.Time.Before(time.Now())
	}

	return status, nil
}
