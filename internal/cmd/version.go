package cmd

import (
	"fmt"
	"runtime"
)

type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	info := map[string]string{
		"version": ctx.Version,
		"go":      runtime.Version(),
		"os_arch": runtime.GOOS + "/" + runtime.GOARCH,
	}
	return ctx.report(info, func() {
		fmt.Fprintf(ctx.Out, "jobpilot %s (%s, %s)\n", info["version"], info["go"], info["os_arch"])
	})
}
