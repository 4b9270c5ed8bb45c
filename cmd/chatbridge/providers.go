package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ProvidersCmd prints the providers a server can route to.
type ProvidersCmd struct {
	ClientFlags
}

// Run executes the providers command.
func (c *ProvidersCmd) Run(out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/providers", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reply struct {
		Available []string `json:"available_providers"`
		Primary   string   `json:"primary_provider"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	if len(reply.Available) == 0 {
		fmt.Fprintln(out, "no providers configured")
		return nil
	}
	for _, name := range reply.Available {
		marker := " "
		if name == reply.Primary {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, name)
	}
	return nil
}
