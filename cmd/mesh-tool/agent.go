package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
)

// staticOOBLength is the size of static OOB data.
const staticOOBLength = 16

// ErrPromptCancelled is returned by prompts interrupted by Cancel.
var ErrPromptCancelled = errors.New("prompt cancelled")

// lineReader reads a line after showing a prompt. *readline.Instance
// implements it.
type lineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// terminalAgent answers provisioning prompts on the terminal.
type terminalAgent struct {
	in     lineReader
	out    io.Writer
	cancel chan struct{}
}

func newTerminalAgent(in lineReader, out io.Writer) *terminalAgent {
	return &terminalAgent{in: in, out: out, cancel: make(chan struct{}, 1)}
}

func (a *terminalAgent) DisplayNumeric(_ context.Context, kind string, number uint32) error {
	fmt.Fprintf(a.out, "Enter %d on the device (%s)\n", number, kind)
	return nil
}

func (a *terminalAgent) DisplayString(_ context.Context, value string) error {
	fmt.Fprintf(a.out, "Enter %q on the device\n", value)
	return nil
}

func (a *terminalAgent) PromptNumeric(ctx context.Context, kind string) (uint32, error) {
	line, err := a.readLine(ctx, fmt.Sprintf("Number shown by the device (%s): ", kind))
	if err != nil {
		return 0, err
	}
	return parseNumeric(line)
}

func (a *terminalAgent) PromptStatic(ctx context.Context, kind string) ([]byte, error) {
	line, err := a.readLine(ctx, fmt.Sprintf("Static OOB data as %d hex digits (%s): ", 2*staticOOBLength, kind))
	if err != nil {
		return nil, err
	}
	return parseStatic(line)
}

func (a *terminalAgent) Cancel() {
	select {
	case a.cancel <- struct{}{}:
	default:
	}
	fmt.Fprintln(a.out, "Provisioning prompt cancelled")
}

// Capabilities advertises the prompts this agent can answer.
func (a *terminalAgent) Capabilities() []string {
	return []string{"out-numeric", "in-numeric", "static-oob"}
}

// readLine shows prompt and waits for a line, ctx or Cancel. A pending
// Cancel from an earlier prompt is discarded first.
func (a *terminalAgent) readLine(ctx context.Context, prompt string) (string, error) {
	select {
	case <-a.cancel:
	default:
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		a.in.SetPrompt(prompt)
		line, err := a.in.Readline()
		done <- result{line, err}
	}()

	select {
	case r := <-done:
		return strings.TrimSpace(r.line), r.err
	case <-a.cancel:
		return "", ErrPromptCancelled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func parseNumeric(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(n), nil
}

func parseStatic(s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid static OOB data: %w", err)
	}
	if len(data) != staticOOBLength {
		return nil, fmt.Errorf("static OOB data must be %d bytes, got %d: %w", staticOOBLength, len(data), mesh.ReqInvalidValueLength)
	}
	return data, nil
}

var (
	_ mesh.AgentDelegate      = (*terminalAgent)(nil)
	_ mesh.CapabilityProvider = (*terminalAgent)(nil)
)
