package cli

import (
	"errors"
	"time"

	"github.com/julianstephens/habitkit/internal/keyring"
	"github.com/julianstephens/habitkit/internal/server"
)

type LoginCmd struct {
	Token string `required:"" help:"Auth token issued by the server." env:"HABITKIT_TOKEN"`
}

func (c *LoginCmd) Run(ctx *Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	if err := keyring.SetToken(c.Token); err != nil {
		return err
	}
	ctx.println("✓ Token stored in OS keyring")
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	if err := keyring.DeleteToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			ctx.println("Not logged in.")
			return nil
		}
		return err
	}
	ctx.println("✓ Token removed from OS keyring")
	return nil
}

type TokenCmd struct {
	Issue TokenIssueCmd `cmd:"" help:"Issue a token for a user (requires server.jwt_secret)."`
}

type TokenIssueCmd struct {
	User string        `arg:"" help:"User id to issue the token for."`
	TTL  time.Duration `help:"Token lifetime; 0 never expires." default:"0"`
}

func (c *TokenIssueCmd) Run(ctx *Context) error {
	tokens, err := server.NewTokenManager(ctx.Settings.Server.JWTSecret)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(c.User, c.TTL)
	if err != nil {
		return err
	}
	ctx.println(token)
	return nil
}
