// Package auth loads and inspects Discord bot tokens.
package auth

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Credentials holds the bot token used for REST calls and Identify.
type Credentials struct {
	Token string // Raw token without the "Bot " prefix
}

// LoadCredentials takes the token directly, or reads it from tokenPath when
// token is empty.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token == "" && tokenPath != "" {
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		token = string(data)
	}

	token = strings.TrimSpace(token)
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bot "))
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("malformed bot token: expected three dot-separated parts")
	}

	return &Credentials{Token: token}, nil
}

// Header returns the Authorization header value.
func (c *Credentials) Header() string {
	return "Bot " + c.Token
}

// ApplicationID decodes the application (bot user) id from the first token
// segment, which is the base64 of the decimal id.
func (c *Credentials) ApplicationID() (snowflake.ID, error) {
	first, _, ok := strings.Cut(c.Token, ".")
	if !ok || first == "" {
		return 0, fmt.Errorf("malformed bot token")
	}

	// Tokens are issued both padded and unpadded.
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(first, "="))
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(first, "="))
		if err != nil {
			return 0, fmt.Errorf("decode token id segment: %w", err)
		}
	}

	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse application id: %w", err)
	}
	return snowflake.ID(id), nil
}

// Redacted returns the token with everything after the id segment masked,
// for log output.
func (c *Credentials) Redacted() string {
	first, _, ok := strings.Cut(c.Token, ".")
	if !ok {
		return "***"
	}
	return first + ".***"
}
