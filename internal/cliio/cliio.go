package cliio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skaphos/dotkeeper/internal/tableutil"
)

// Input hands lines from a reader to successive prompts. One reader
// goroutine lives as long as the Input and holds at most one unread line, so
// an answer typed after one prompt is still there for the next. Share a
// single Input across every prompt of a command.
type Input struct {
	r     io.Reader
	once  sync.Once
	lines chan string
	err   error
}

// NewInput wraps r for prompting.
func NewInput(r io.Reader) *Input {
	return &Input{r: r, lines: make(chan string)}
}

// next returns the line channel, starting the reader on first use. The
// channel is closed at end of input; Err is valid after that.
func (in *Input) next() <-chan string {
	in.once.Do(func() {
		go func() {
			scanner := bufio.NewScanner(in.r)
			for scanner.Scan() {
				in.lines <- scanner.Text()
			}
			in.err = scanner.Err()
			close(in.lines)
		}()
	})
	return in.lines
}

// PromptYesNo writes prompt and reads a yes/no response from input.
func PromptYesNo(out io.Writer, in *Input, prompt string) (bool, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return false, err
	}
	line, ok := <-in.next()
	if !ok && in.err != nil {
		return false, in.err
	}
	choice := strings.ToLower(strings.TrimSpace(line))
	return choice == "y" || choice == "yes", nil
}

// PromptChoice asks the user to pick one of options. An answer matches an
// option by its 1-based number, its full name, or an unambiguous prefix,
// case-insensitively. An empty
// answer, end of input, or no answer within timeout selects def; timedOut
// reports the last case. Unrecognized answers re-prompt. A timeout of zero
// waits forever.
func PromptChoice(ctx context.Context, out io.Writer, in *Input, prompt string, options []string, def string, timeout time.Duration) (choice string, timedOut bool, err error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if _, err := fmt.Fprint(out, prompt); err != nil {
			return "", false, err
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-expired:
			_, _ = fmt.Fprintf(out, "\nno answer after %s, using %s\n", timeout, def)
			return def, true, nil
		case line, ok := <-in.next():
			if !ok {
				if in.err != nil && !errors.Is(in.err, io.EOF) {
					return "", false, in.err
				}
				return def, false, nil
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			if answer == "" {
				return def, false, nil
			}
			if match, ok := matchOption(answer, options); ok {
				return match, false, nil
			}
			_, _ = fmt.Fprintf(out, "please answer one of: %s\n", strings.Join(options, ", "))
		}
	}
}

func matchOption(answer string, options []string) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	var found string
	for _, opt := range options {
		lower := strings.ToLower(opt)
		if answer == lower {
			return opt, true
		}
		if strings.HasPrefix(lower, answer) {
			if found != "" {
				return "", false
			}
			found = opt
		}
	}
	return found, found != ""
}

// WriteTable renders a simple tab-separated table with optional headers.
func WriteTable(out io.Writer, stripEscape bool, noHeaders bool, headers []string, rows [][]string) error {
	w := tableutil.New(out, stripEscape)
	if !noHeaders {
		if _, err := fmt.Fprintln(w, strings.Join(headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}
