// Package prompt is the PromptAdapter contract (spec.md §6 "user prompt
// rendering" is out of scope for the core; this is the adapter contract
// the core expects): choose_one, confirm, input, plus the
// --unattended/non-TTY fallback every operation needs when nobody is
// there to answer.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrUnattended is returned by every prompt method when the adapter has
// no way to ask a question (stdin isn't a terminal, or --unattended was
// passed) and the fallback Policy is not PolicyFirst. Callers (the Matcher's disambiguation path in particular)
// treat this the same as "no answer available" rather than a fatal error.
var ErrUnattended = errors.New("prompt: no interactive input available")

// Policy picks the unattended fallback behavior when Unattended is true
// or stdin is not a TTY.
type Policy string

const (
	// PolicyFail returns ErrUnattended from every prompt call.
	PolicyFail Policy = "fail"
	// PolicyFirst answers choose_one with option 0, confirm with its
	// default answer and input with its default value, the "best effort, keep the batch moving" policy for scripted runs.
	PolicyFirst Policy = "first"
)

// Adapter implements the ChooseOne/Confirm/Input surface the Matcher
// (C5) and the CLI runners need, switching between real terminal
// interaction and the unattended Policy based on isatty.IsTerminal.
type Adapter struct {
	In         io.Reader
	Out        io.Writer
	Unattended bool
	Fallback   Policy

	scanner *bufio.Scanner
}

// New builds an Adapter reading stdin/writing stdout, matching the
// signature the CLI wires at startup; unattended is the --unattended
// flag, forcing the fallback Policy even when stdin is a real TTY.
func New(in io.Reader, out io.Writer, unattended bool, fallback Policy) *Adapter {
	if fallback == "" {
		fallback = PolicyFail
	}
	return &Adapter{In: in, Out: out, Unattended: unattended, Fallback: fallback}
}

func (a *Adapter) interactive() bool {
	if a.Unattended {
		return false
	}
	f, ok := a.In.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *Adapter) line() (string, error) {
	if a.scanner == nil {
		a.scanner = bufio.NewScanner(a.In)
	}
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.scanner.Text()), nil
}

// ChooseOne asks question and returns the index into options the user
// picked, satisfying matcher.DisambiguationPrompt.
func (a *Adapter) ChooseOne(ctx context.Context, question string, options []string) (int, error) {
	if !a.interactive() {
		if a.Fallback == PolicyFirst && len(options) > 0 {
			return 0, nil
		}
		return 0, ErrUnattended
	}

	fmt.Fprintln(a.Out, question)
	for i, opt := range options {
		fmt.Fprintf(a.Out, "  [%d] %s\n", i+1, opt)
	}
	fmt.Fprint(a.Out, "> ")

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		text, err := a.line()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintf(a.Out, "enter a number between 1 and %d: ", len(options))
			continue
		}
		return n - 1, nil
	}
}

// Confirm asks a yes/no question, defaulting to defaultYes when the user
// just presses enter.
func (a *Adapter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	if !a.interactive() {
		if a.Fallback == PolicyFirst {
			return defaultYes, nil
		}
		return false, ErrUnattended
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Fprintf(a.Out, "%s %s ", question, suffix)

	if err := ctx.Err(); err != nil {
		return false, err
	}
	text, err := a.line()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(text) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return defaultYes, nil
	}
}

// Input asks a free-text question, returning defaultValue if the user
// enters nothing, or if no terminal is attached and the fallback Policy
// is PolicyFirst.
func (a *Adapter) Input(ctx context.Context, question, defaultValue string) (string, error) {
	if !a.interactive() {
		if a.Fallback == PolicyFirst {
			return defaultValue, nil
		}
		return "", ErrUnattended
	}

	fmt.Fprintf(a.Out, "%s [%s]: ", question, defaultValue)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := a.line()
	if err != nil {
		return "", err
	}
	if text == "" {
		return defaultValue, nil
	}
	return text, nil
}
