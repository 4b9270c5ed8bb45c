// Package main is the entry point for the chat bridge server and its client commands.
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"

	"chatbridge/internal/version"
)

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("chatbridge"),
		kong.Description("Multi-provider LLM chat bridge for the furniture store assistant"),
		kong.UsageOnError(),
		kong.Vars{"version": version.Info()},
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
