package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/newthinker/stratdesk/internal/core"
)

// Login exchanges credentials for an access token. The form-encoded body
// matches an OAuth2 password grant. On success the client adopts the token.
func (c *Client) Login(ctx context.Context, creds core.Credentials) (*core.Token, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	var token core.Token
	err := c.do(ctx, http.MethodPost, "/token",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &token)
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("login response carried no access_token")
	}

	c.SetToken(token.AccessToken)
	return &token, nil
}
