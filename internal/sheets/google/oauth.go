package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultTokenFile is where cmd/sheets-auth stores the user token.
const DefaultTokenFile = "token.json"

// OAuthConfigFromEnv reads the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or
// GOOGLE_OAUTH_CLIENT_FILE. ok is false when neither is set.
func OAuthConfigFromEnv() (cfg *oauth2.Config, ok bool, err error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	path := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case path != "":
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, true, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, false, nil
	}

	cfg, err = goauth.ConfigFromJSON(data, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, true, fmt.Errorf("parse oauth client: %w", err)
	}
	return cfg, true, nil
}

// TokenFile is GOOGLE_OAUTH_TOKEN_FILE or DefaultTokenFile.
func TokenFile() string {
	if p := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")); p != "" {
		return p
	}
	return DefaultTokenFile
}

func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token file holds no access or refresh token")
	}
	return &tok, nil
}

// SaveToken writes tok readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// userClientOption authenticates as the user that ran cmd/sheets-auth,
// refreshing the stored token through the pooled transport.
func userClientOption(ctx context.Context, cfg *oauth2.Config) (goption.ClientOption, error) {
	tok, err := LoadToken(TokenFile())
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return goption.WithHTTPClient(oauth2.NewClient(ctx, cfg.TokenSource(ctx, tok))), nil
}
