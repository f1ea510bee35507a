package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// ErrNoSoffice is returned when no LibreOffice binary can be found.
var ErrNoSoffice = errors.New("could not find soffice binary")

// Output formats understood by Soffice.Convert.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

var filters = map[string]string{
	FormatHTML: "html:HTML:EmbedImages",
	FormatPDF:  "pdf",
}

// ExecFunc runs a command and returns its combined output.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Soffice converts office documents with a headless LibreOffice.
type Soffice struct {
	// Paths are checked before the platform defaults.
	Paths         []string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
	Exec          ExecFunc
	Log           *slog.Logger
}

// NewSoffice returns a converter with the defaults used in production:
// ten output polls two seconds apart.
func NewSoffice(binary string, timeout time.Duration, log *slog.Logger) *Soffice {
	s := &Soffice{
		Timeout:       timeout,
		MaxRetries:    10,
		RetryInterval: 2 * time.Second,
		Exec:          defaultExec,
		Log:           log,
	}
	if binary != "" {
		s.Paths = []string{binary}
	}
	return s
}

func platformPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Applications/LibreOffice.app/Contents/MacOS/soffice"}
	case "windows":
		var out []string
		for _, env := range []string{"PROGRAMFILES(X86)", "PROGRAMFILES"} {
			if dir := os.Getenv(env); dir != "" {
				out = append(out, filepath.Join(dir, "LibreOffice", "program", "soffice.exe"))
			}
		}
		return out
	default:
		return []string{
			"/usr/bin/libreoffice",
			"/usr/bin/soffice",
			"/snap/bin/libreoffice",
			"/opt/libreoffice/program/soffice",
		}
	}
}

// Binary returns the first existing soffice binary.
func (s *Soffice) Binary() (string, error) {
	for _, p := range append(append([]string{}, s.Paths...), platformPaths()...) {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	if p, err := exec.LookPath("soffice"); err == nil {
		return p, nil
	}
	return "", ErrNoSoffice
}

// Convert renders the document at src into format and returns the output
// bytes. LibreOffice may exit before the file is flushed, so the output is
// polled up to MaxRetries times.
func (s *Soffice) Convert(ctx context.Context, src, format string) ([]byte, error) {
	filter, ok := filters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	bin, err := s.Binary()
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "itemgest-convert-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)
	installDir, err := os.MkdirTemp("", "itemgest-soffice-*")
	if err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	defer os.RemoveAll(installDir)

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	source := filepath.Join(workDir, "source"+filepath.Ext(src))
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return nil, fmt.Errorf("stage source: %w", err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(installDir),
		"--headless",
		"--convert-to", filter,
		"--outdir", workDir,
		source,
	}
	run := s.Exec
	if run == nil {
		run = defaultExec
	}
	start := time.Now()
	if out, err := run(ctx, bin, args...); err != nil {
		return nil, fmt.Errorf("soffice: %w: %s", err, out)
	}

	dest := filepath.Join(workDir, "source."+format)
	result, err := s.waitFor(ctx, dest)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("soffice conversion done", "format", format, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (s *Soffice) waitFor(ctx context.Context, path string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) || attempt >= s.MaxRetries {
			return nil, fmt.Errorf("load converted output: %w", err)
		}
		s.logger().Debug("conversion in progress", "attempt", attempt+1)
		timer := time.NewTimer(s.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Soffice) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
