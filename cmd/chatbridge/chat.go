package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatbridge/internal/core"
	"chatbridge/internal/streaming"
)

// ChatCmd sends one message and prints the answer.
type ChatCmd struct {
	ClientFlags

	Provider     string   `short:"p" help:"Provider to use (default: the server's primary)"`
	Stream       bool     `short:"s" help:"Print the answer as it streams in"`
	Conversation string   `help:"Conversation ID to continue"`
	Message      []string `arg:"" help:"Message to send"`
}

var errChatFailed = errors.New("chat failed")

// Run executes the chat command.
func (c *ChatCmd) Run(out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	body := map[string]any{
		"message": strings.Join(c.Message, " "),
		"stream":  c.Stream,
	}
	if c.Provider != "" {
		body["provider"] = c.Provider
	}
	if c.Conversation != "" {
		body["conversation_id"] = c.Conversation
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/chat", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if c.Stream {
		return printStream(out, resp.Body)
	}

	var reply struct {
		Message  string `json:"message"`
		Provider string `json:"provider"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	fmt.Fprintln(out, reply.Message)
	if reply.Status != "success" {
		return errChatFailed
	}
	return nil
}

func printStream(out io.Writer, r io.Reader) error {
	dec := streaming.NewDecoder(r)
	for {
		l, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: stream ended without a final chunk", streaming.ErrStreamFailed)
		}
		if err != nil {
			return err
		}
		if l.Error != "" || core.IsSentinel(l.Chunk) {
			fmt.Fprintln(out)
			fmt.Fprintln(out, l.Chunk)
			return streaming.ErrStreamFailed
		}
		fmt.Fprint(out, l.Chunk)
		if l.IsFinal {
			fmt.Fprintln(out)
			return nil
		}
	}
}
