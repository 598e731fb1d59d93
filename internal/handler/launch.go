package handler

import (
	"context"
	"fmt"
	"log/slog"
)

// Opener starts an external application for a URI.
type Opener interface {
	Open(ctx context.Context, uri string) error
}

// LinkLauncher opens URIs on the host and also posts them to the chat, so
// the owner can follow them from the phone when the host is headless.
type LinkLauncher struct {
	host   Opener
	notify func(ctx context.Context, text string)
}

func NewLinkLauncher(host Opener, notify func(ctx context.Context, text string)) *LinkLauncher {
	return &LinkLauncher{host: host, notify: notify}
}

func (l *LinkLauncher) Open(ctx context.Context, uri string) error {
	var hostErr error
	if l.host != nil {
		hostErr = l.host.Open(ctx, uri)
		if hostErr != nil {
			slog.Warn("open on host", "error", hostErr)
		}
	}
	if l.notify != nil {
		l.notify(ctx, fmt.Sprintf("🔗 %s", uri))
		return nil
	}
	return hostErr
}
