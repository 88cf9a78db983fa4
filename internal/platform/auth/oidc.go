package auth

import (
	"errors"
	"net/http"
	"strings"
)

// OIDCProvider holds the discovery fields used for token verification.
type OIDCProvider struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// NewOIDCProvider reads <issuer>/.well-known/openid-configuration.
func NewOIDCProvider(issuerURL string) (*OIDCProvider, error) {
	url := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	var p OIDCProvider
	if err := getJSON(&http.Client{Timeout: keyFetchTimeout}, url, &p); err != nil {
		return nil, err
	}
	if p.JWKSURI == "" {
		return nil, errors.New("discovery document has no jwks_uri")
	}
	return &p, nil
}
