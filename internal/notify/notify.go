package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Notifier delivers a titled message to the user.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Runner executes an external command. Replaceable in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop sends OS-level notifications: notify-send on Linux and BSD,
// osascript on macOS, a PowerShell message box on Windows.
type Desktop struct {
	GOOS string
	Run  Runner
}

// NewDesktop returns a Desktop notifier for the running OS.
func NewDesktop() *Desktop {
	return &Desktop{GOOS: runtime.GOOS, Run: execRunner}
}

func (d *Desktop) Notify(ctx context.Context, title, message string) error {
	name, args := Command(d.GOOS, title, message)
	if err := d.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Command builds the notification command line for goos.
func Command(goos, title, message string) (string, []string) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			appleScriptEscape(message), appleScriptEscape(title))
		return "osascript", []string{"-e", script}
	case "windows":
		flat := strings.ReplaceAll(message, "\n", " ")
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.MessageBox]::Show('%s', '%s', 'OK', 'Information')",
			psEscape(flat), psEscape(title))
		return "powershell", []string{"-WindowStyle", "Hidden", "-Command", script}
	default:
		return "notify-send", []string{"-i", "time-admin", "-u", "normal", "-t", "5000", title, message}
	}
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func psEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Console writes notifications to a stream.
type Console struct {
	Out io.Writer
	mu  sync.Mutex
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{Out: os.Stdout}
}

func (c *Console) Notify(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.Out, "NOTIFICATION: %s - %s\n", title, message)
	return err
}

// Fallback tries Primary and, when it fails, writes the same notification
// to Secondary. The primary error is still returned so callers can log it.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

func (f *Fallback) Notify(ctx context.Context, title, message string) error {
	err := f.Primary.Notify(ctx, title, message)
	if err == nil {
		return nil
	}
	if serr := f.Secondary.Notify(ctx, title, message); serr != nil {
		return fmt.Errorf("%w; console fallback: %v", err, serr)
	}
	return err
}

// New returns the standard notifier: desktop delivery with console
// fallback, or console only when desktop is false.
func New(desktop bool, console io.Writer) Notifier {
	c := &Console{Out: console}
	if !desktop {
		return c
	}
	return &Fallback{Primary: NewDesktop(), Secondary: c}
}
