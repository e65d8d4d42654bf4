package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type prompter struct {
	in     *os.File
	reader *bufio.Reader
	w      io.Writer
}

func newPrompter(in *os.File, w io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), w: w}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.w, "%s: ", label)
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// password reads without echo on a terminal and falls back to a plain line
// when input is piped.
func (p *prompter) password(label string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.line(label)
	}
	fmt.Fprintf(p.w, "%s: ", label)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
