package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
)

// terminalProbe describes the terminal the console was started from.
type terminalProbe struct {
	name    string // $TERM
	program string // $TERM_PROGRAM
	width   int
	height  int
	tty     bool
	color   bool
}

func probeTerminal() terminalProbe {
	p := terminalProbe{
		name:    os.Getenv("TERM"),
		program: os.Getenv("TERM_PROGRAM"),
		tty:     term.IsTerminal(int(os.Stdout.Fd())),
	}
	p.width, p.height = terminalSize()
	p.color = os.Getenv("COLORTERM") != "" || colorTerm(p.name)
	return p
}

func (p terminalProbe) String() string {
	name := p.name
	if name == "" {
		name = "<not set>"
	}
	parts := []string{"TERM=" + name}
	if p.program != "" {
		parts = append(parts, "TERM_PROGRAM="+p.program)
	}
	if p.width > 0 && p.height > 0 {
		parts = append(parts, fmt.Sprintf("Size=%dx%d", p.width, p.height))
	}
	parts = append(parts, "TTY="+yesNo(p.tty), "Colors="+yesNo(p.color))
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// terminalSize prefers COLUMNS and LINES, then asks the terminal. 0,0 lets tview decide.
func terminalSize() (int, int) {
	c, errC := strconv.Atoi(os.Getenv("COLUMNS"))
	r, errR := strconv.Atoi(os.Getenv("LINES"))
	if errC == nil && errR == nil && c > 0 && r > 0 {
		return c, r
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return w, h
	}
	return 0, 0
}

func colorTerm(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range []string{"color", "256", "truecolor", "24bit", "xterm", "screen", "tmux", "linux", "ansi"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// canInitializeTUI opens and releases a tcell screen.
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// needsPseudoTTY is true without a controlling terminal, e.g. under a process runner.
func needsPseudoTTY() bool {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return true
	}
	f.Close()
	return false
}

// runWithPseudoTTY runs "tui <args> --force-tui" again under script(1),
// which allocates the terminal tcell needs.
func runWithPseudoTTY(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	words := []string{strconv.Quote(exe), "tui"}
	for _, a := range args {
		words = append(words, strconv.Quote(a))
	}
	words = append(words, "--force-tui")
	line := "TERM=" + strconv.Quote(os.Getenv("TERM")) + " " + strings.Join(words, " ")

	c := exec.Command("script", "-qec", line, "/dev/null")
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	c.Env = os.Environ()
	return c.Run()
}

// setupFileLogger opens logs/<name> under the working directory for appending.
func setupFileLogger(name string) (*os.File, string) {
	dir := filepath.Join(getWorkingDir(), "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ""
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ""
	}
	return f, path
}

// errorFilterWriter forwards only log lines that report a failure.
type errorFilterWriter struct {
	writer io.Writer
}

func (w *errorFilterWriter) Write(p []byte) (int, error) {
	line := strings.ToLower(string(p))
	switch {
	case strings.Contains(line, "context canceled"):
		// fetches cancelled on exit
	case strings.Contains(line, "error"), strings.Contains(line, "failed"), strings.Contains(line, "panic"):
		return w.writer.Write(p)
	}
	return len(p), nil
}
