package dialog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Severity is the tone of a confirmation prompt.
type Severity string

const (
	SeveritySuccess  Severity = "success"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityQuestion Severity = "question"
)

// Prompt is what the user is asked to confirm.
type Prompt struct {
	Title    string
	Text     string
	Severity Severity
}

// Terminal asks for confirmation on a line-oriented terminal. It shares its
// reader with the command loop, so only one prompt may be open at a time.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in *bufio.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Confirm prints the prompt and waits for a yes/no answer. Anything other
// than y/yes counts as no; EOF is an error.
func (t *Terminal) Confirm(ctx context.Context, p Prompt) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(t.out, "[%s] %s\n%s [y/N]: ", strings.ToUpper(string(p.Severity)), p.Title, p.Text)

	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// NotifySuccess tells the user the cart was emptied.
func (t *Terminal) NotifySuccess(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(t.out, "Your cart is empty now.")
	return err
}
