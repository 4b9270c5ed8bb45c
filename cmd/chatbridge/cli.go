package main

import (
	"time"

	"github.com/alecthomas/kong"
)

// CLI is the command tree.
type CLI struct {
	Config  string           `short:"c" help:"Path to config file" type:"path" env:"CHATBRIDGE_CONFIG"`
	Version kong.VersionFlag `help:"Print version information"`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the chat bridge server"`
	Chat      ChatCmd      `cmd:"" help:"Send a message to a running server"`
	Providers ProvidersCmd `cmd:"" help:"List the providers of a running server"`
}

// ClientFlags are shared by commands that talk to a running server.
type ClientFlags struct {
	URL     string        `help:"Server base URL" default:"http://localhost:5000" env:"CHATBRIDGE_URL"`
	Timeout time.Duration `help:"Request timeout" default:"60s"`
}
