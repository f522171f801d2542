package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/feather-lang/foreign/internal/expr"
)

const prompt = ">>> "

// runREPL reads statements line by line. On a terminal it uses a line
// editor with history and tab completion; otherwise it reads in plain and
// keeps going after errors.
func runREPL(env *expr.Env, in io.Reader, out, errOut io.Writer) error {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runTerminal(env, f, out)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := env.Exec(line)
		if err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			continue
		}
		if p != nil {
			fmt.Fprintln(out, expr.Format(p))
		}
	}
	return scanner.Err()
}

func runTerminal(env *expr.Env, f *os.File, out io.Writer) error {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, out}, prompt)
	if width, height, err := term.GetSize(fd); err == nil {
		t.SetSize(width, height)
	}
	t.AutoCompleteCallback = completer(env)

	for {
		line, err := t.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := env.Exec(line)
		if err != nil {
			fmt.Fprintf(t, "error: %s\n", err)
			continue
		}
		if p != nil {
			fmt.Fprintln(t, expr.Format(p))
		}
	}
}

// completer completes the dotted word before the cursor on tab, up to the
// longest prefix shared by all candidates.
func completer(env *expr.Env) func(line string, pos int, key rune) (string, int, bool) {
	return func(line string, pos int, key rune) (string, int, bool) {
		if key != '\t' {
			return "", 0, false
		}
		start := pos
		for start > 0 && isWordByte(line[start-1]) {
			start--
		}
		word := line[start:pos]
		if word == "" {
			return "", 0, false
		}
		completion := commonPrefix(env.Complete(word))
		if len(completion) <= len(word) {
			return "", 0, false
		}
		return line[:start] + completion + line[pos:], start + len(completion), true
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func commonPrefix(words []string) string {
	if len(words) == 0 {
		return ""
	}
	prefix := words[0]
	for _, w := range words[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
