package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

var ErrNoOpener = errors.New("no URI opener available on this system")

// System hands URIs to the desktop's default handler.
type System struct {
	goos string
	look func(string) (string, error)
	run  func(ctx context.Context, name string, args ...string) error
}

func NewSystem() *System {
	return &System{
		goos: runtime.GOOS,
		look: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Start()
		},
	}
}

// Open starts the handler for uri without waiting for it to exit.
func (s *System) Open(ctx context.Context, uri string) error {
	name, args, err := s.command(uri)
	if err != nil {
		return err
	}
	if err := s.run(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w", scheme(uri), err)
	}
	slog.Info("uri opened", "scheme", scheme(uri))
	return nil
}

func (s *System) command(uri string) (string, []string, error) {
	switch s.goos {
	case "darwin":
		return "open", []string{uri}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", uri}, nil
	}
	for _, name := range []string{"xdg-open", "gio"} {
		if _, err := s.look(name); err != nil {
			continue
		}
		if name == "gio" {
			return name, []string{"open", uri}, nil
		}
		return name, []string{uri}, nil
	}
	return "", nil, ErrNoOpener
}

func scheme(uri string) string {
	if i := strings.Index(uri, ":"); i > 0 {
		return uri[:i]
	}
	return "unknown"
}
