package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the user.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	// ReadPassword reads a line without echoing it when input is a terminal.
	ReadPassword(prompt string) (string, error)
}

// TerminalPrompter prompts on out and reads from in.
type TerminalPrompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// NewTerminalPrompter creates a prompter for in. Passwords are read without
// echo only when in is a terminal.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	p := &TerminalPrompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// ReadLine prints prompt and returns the next line without its newline.
func (p *TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword prints prompt and reads a password.
func (p *TerminalPrompter) ReadPassword(prompt string) (string, error) {
	if !p.isTerm {
		return p.ReadLine(prompt)
	}

	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// promptConfirmer asks before cards are deleted.
type promptConfirmer struct {
	out      io.Writer
	prompter Prompter
}

func (c *promptConfirmer) ConfirmDelete(usernames []string) (bool, error) {
	fmt.Fprintln(c.out, "Will delete these cards:")
	for _, u := range usernames {
		fmt.Fprintln(c.out, "  ", u)
	}

	for {
		reply, err := c.prompter.ReadLine("Proceed (y/n)? ")
		if err != nil {
			return false, err
		}
		reply = strings.ToLower(strings.TrimSpace(reply))
		switch {
		case strings.HasPrefix(reply, "y"):
			return true, nil
		case strings.HasPrefix(reply, "n"):
			return false, nil
		}
	}
}
