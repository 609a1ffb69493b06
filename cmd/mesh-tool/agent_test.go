package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
)

// scriptedLines answers Readline with queued lines and blocks when empty.
type scriptedLines struct {
	mu      sync.Mutex
	lines   []string
	prompts []string
	block   chan struct{}
}

func newScriptedLines(lines ...string) *scriptedLines {
	return &scriptedLines{lines: lines, block: make(chan struct{})}
}

func (s *scriptedLines) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
}

func (s *scriptedLines) Readline() (string, error) {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		<-s.block
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	s.mu.Unlock()
	return line, nil
}

func (s *scriptedLines) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func TestTerminalAgentPromptNumeric(t *testing.T) {
	in := newScriptedLines(" 123456 ")
	agent := newTerminalAgent(in, io.Discard)

	n, err := agent.PromptNumeric(context.Background(), "push")
	if err != nil {
		t.Fatalf("PromptNumeric failed: %v", err)
	}
	if n != 123456 {
		t.Errorf("PromptNumeric = %d, want 123456", n)
	}
	if !strings.Contains(in.lastPrompt(), "push") {
		t.Errorf("prompt %q does not name the action", in.lastPrompt())
	}
}

func TestTerminalAgentPromptStatic(t *testing.T) {
	in := newScriptedLines("00112233445566778899aabbccddeeff")
	agent := newTerminalAgent(in, io.Discard)

	data, err := agent.PromptStatic(context.Background(), "static-oob")
	if err != nil {
		t.Fatalf("PromptStatic failed: %v", err)
	}
	if len(data) != 16 || data[0] != 0x00 || data[15] != 0xff {
		t.Errorf("PromptStatic = %x", data)
	}
}

func TestTerminalAgentPromptInvalid(t *testing.T) {
	agent := newTerminalAgent(newScriptedLines("abc", "0011"), io.Discard)

	if _, err := agent.PromptNumeric(context.Background(), "push"); err == nil {
		t.Error("expected error for non-numeric input")
	}
	_, err := agent.PromptStatic(context.Background(), "static-oob")
	if !errors.Is(err, mesh.ReqInvalidValueLength) {
		t.Errorf("PromptStatic error = %v, want InvalidValueLength", err)
	}
}

func TestTerminalAgentCancel(t *testing.T) {
	var out bytes.Buffer
	in := newScriptedLines()
	agent := newTerminalAgent(in, &out)

	errc := make(chan error, 1)
	go func() {
		_, err := agent.PromptNumeric(context.Background(), "twist")
		errc <- err
	}()

	deadline := time.Now().Add(time.Second)
	for in.lastPrompt() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	agent.Cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrPromptCancelled) {
			t.Errorf("PromptNumeric error = %v, want ErrPromptCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("prompt was not cancelled")
	}
}

func TestTerminalAgentPromptContext(t *testing.T) {
	agent := newTerminalAgent(newScriptedLines(), io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := agent.PromptStatic(ctx, "static-oob")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("PromptStatic error = %v, want DeadlineExceeded", err)
	}
}

func TestTerminalAgentDisplay(t *testing.T) {
	var out bytes.Buffer
	agent := newTerminalAgent(newScriptedLines(), &out)

	if err := agent.DisplayNumeric(context.Background(), "out-numeric", 42); err != nil {
		t.Fatal(err)
	}
	if err := agent.DisplayString(context.Background(), "A1B2"); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"Enter 42", "out-numeric", `"A1B2"`} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("expected %q in output:\n%s", s, out.String())
		}
	}
}
