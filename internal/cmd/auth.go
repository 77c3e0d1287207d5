package cmd

import (
	"github.com/jimezsa/jobpilot/internal/config"
)

type AuthCmd struct {
	Login  AuthLoginCmd  `cmd:"" help:"Authorize with Upwork and verify the token."`
	Logout AuthLogoutCmd `cmd:"" help:"Remove tokens stored in the OS keychain."`
}

type AuthLoginCmd struct{}

type AuthLogoutCmd struct{}

func (c *AuthLoginCmd) Run(ctx *Context) error {
	if _, err := ctx.upworkClient(ctx.context()); err != nil {
		return err
	}
	ctx.UI.Successf("Upwork authorization is valid.")
	return nil
}

func (c *AuthLogoutCmd) Run(ctx *Context) error {
	if err := config.ClearToken(); err != nil {
		return err
	}
	ctx.UI.Successf("Removed stored Upwork tokens.")
	return nil
}
