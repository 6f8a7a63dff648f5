package menu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// ErrCancelled is returned when the operator aborts a prompt with Ctrl+C or
// closes input.
var ErrCancelled = errors.New("cancelled")

// Prompter reads operator input.
type Prompter interface {
	Line(prompt string) (string, error)
	Password(prompt string) (string, error)
	Close() error
}

// LinePrompter reads from the terminal with line editing and history.
type LinePrompter struct {
	state       *liner.State
	interactive bool
	stdin       *bufio.Reader
}

func NewLinePrompter() *LinePrompter {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	p := &LinePrompter{interactive: interactive}
	if interactive {
		p.state = liner.NewLiner()
		p.state.SetCtrlCAborts(true)
	} else {
		p.stdin = bufio.NewReader(os.Stdin)
	}
	return p
}

func (p *LinePrompter) Line(prompt string) (string, error) {
	if !p.interactive {
		fmt.Fprint(os.Stdout, prompt)
		line, err := p.stdin.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", cancelled(err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	line, err := p.state.Prompt(prompt)
	if err != nil {
		return "", cancelled(err)
	}
	if strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}
	return line, nil
}

// Password reads without echo on a terminal. Piped input is read as a
// plain line.
func (p *LinePrompter) Password(prompt string) (string, error) {
	if !p.interactive {
		return p.Line(prompt)
	}
	pw, err := p.state.PasswordPrompt(prompt)
	if err != nil {
		return "", cancelled(err)
	}
	return pw, nil
}

func (p *LinePrompter) Close() error {
	if p.state != nil {
		return p.state.Close()
	}
	return nil
}

func cancelled(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return ErrCancelled
	}
	return err
}

// ParseYesNo accepts yes/y/true/1 and no/n/false/0 in any case.
func ParseYesNo(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	}
	return false, false
}

// Asker layers validated questions over a Prompter. Invalid answers are
// reported and asked again.
type Asker struct {
	in  Prompter
	out io.Writer
}

func NewAsker(in Prompter, out io.Writer) *Asker {
	return &Asker{in: in, out: out}
}

// YesNo asks a yes/no question; an empty answer takes def.
func (a *Asker) YesNo(prompt string, def bool) (bool, error) {
	hint := "no"
	if def {
		hint = "yes"
	}
	for {
		resp, err := a.in.Line(fmt.Sprintf("%s [%s]: ", prompt, hint))
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(resp) == "" {
			return def, nil
		}
		if v, ok := ParseYesNo(resp); ok {
			return v, nil
		}
		fmt.Fprintln(a.out, "Please enter 'yes' or 'no'")
	}
}

// Number asks for an integer in [lo, hi].
func (a *Asker) Number(prompt string, lo, hi int) (int, error) {
	for {
		resp, err := a.in.Line(prompt + ": ")
		if err != nil {
			return 0, err
		}
		resp = strings.TrimSpace(resp)
		if resp == "" {
			fmt.Fprintln(a.out, "Please enter a number")
			continue
		}
		n, err := strconv.Atoi(resp)
		switch {
		case err != nil:
			fmt.Fprintln(a.out, "Invalid input. Please enter a valid number")
		case n < lo:
			fmt.Fprintf(a.out, "Please enter a number >= %d\n", lo)
		case n > hi:
			fmt.Fprintf(a.out, "Please enter a number <= %d\n", hi)
		default:
			return n, nil
		}
	}
}

// Text asks for a trimmed line.
func (a *Asker) Text(prompt string) (string, error) {
	resp, err := a.in.Line(prompt + ": ")
	return strings.TrimSpace(resp), err
}

// List asks for a comma separated list.
func (a *Asker) List(prompt string) ([]string, error) {
	resp, err := a.Text(prompt)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range strings.Split(resp, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Asker) Password(prompt string) (string, error) {
	return a.in.Password(prompt)
}
