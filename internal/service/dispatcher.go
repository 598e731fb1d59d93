package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
)

// MediaStore keeps image bytes behind opaque references.
type MediaStore interface {
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, string, error)
}

// Launcher opens a URI with the user's external application.
type Launcher interface {
	Open(ctx context.Context, uri string) error
}

var errEmptyReply = errors.New("backend reply has neither text nor function calls")

// Dispatcher applies a backend reply to a session: text first, then the
// first function call.
type Dispatcher struct {
	store    *SessionStore
	backend  Backend
	media    MediaStore
	launcher Launcher
}

func NewDispatcher(store *SessionStore, backend Backend, media MediaStore, launcher Launcher) *Dispatcher {
	return &Dispatcher{store: store, backend: backend, media: media, launcher: launcher}
}

// Handle commits the reply. The returned error is a sub-call failure that
// has already been turned into an error message.
func (d *Dispatcher) Handle(ctx context.Context, sessionID string, reply domain.Reply) error {
	text := strings.TrimSpace(reply.Text)
	if text == "" && len(reply.Calls) == 0 {
		slog.Warn("empty reply", "session_id", sessionID)
		d.appendError(ctx, sessionID, errEmptyReply)
		return errEmptyReply
	}

	if text != "" {
		msg := domain.Message{
			ID:      newMessageID(),
			Role:    domain.RoleModel,
			Text:    text,
			Sources: slices.Clone(reply.Sources),
		}
		if err := d.store.AppendMessages(ctx, sessionID, msg); err != nil {
			return fmt.Errorf("append reply: %w", err)
		}
	}

	if len(reply.Calls) == 0 {
		return nil
	}
	if len(reply.Calls) > 1 {
		slog.Info("ignoring extra function calls", "count", len(reply.Calls)-1)
	}

	call := reply.Calls[0]
	switch call.Name {
	case domain.FuncOpenApplication:
		d.openApplication(ctx, call)
		return nil
	case domain.FuncGenerateImage:
		return d.generateImage(ctx, sessionID, call)
	case domain.FuncSolveComplexTask:
		return d.solveComplexTask(ctx, sessionID, call)
	default:
		slog.Warn("unknown function call", "name", call.Name)
		return nil
	}
}

func (d *Dispatcher) openApplication(ctx context.Context, call domain.FunctionCallIntent) {
	app := call.StringArg("appName")
	uri, ok := ResolveAppURI(app, call.StringArg("query"))
	if !ok {
		slog.Warn("unknown application", "app", app)
		return
	}
	if d.launcher == nil {
		return
	}
	if err := d.launcher.Open(ctx, uri); err != nil {
		slog.Error("open application", "error", err, "app", app)
	}
}

func (d *Dispatcher) generateImage(ctx context.Context, sessionID string, call domain.FunctionCallIntent) error {
	prompt := call.StringArg("prompt")
	aspect := normalizeAspectRatio(call.StringArg("aspectRatio"))

	return d.withPlaceholder(ctx, sessionID, fmt.Sprintf(config.PlaceholderImage, prompt), func() (domain.Message, error) {
		if prompt == "" {
			return domain.Message{}, errors.New("generate image: empty prompt")
		}
		img, err := d.backend.GenerateImage(ctx, prompt, aspect)
		if err != nil {
			return domain.Message{}, err
		}
		ref, err := d.media.Put(ctx, img.Data, img.MIMEType)
		if err != nil {
			return domain.Message{}, fmt.Errorf("store generated image: %w", err)
		}
		return domain.Message{
			ID:             newMessageID(),
			Role:           domain.RoleModel,
			Text:           fmt.Sprintf(config.GeneratedImageText, prompt),
			GeneratedImage: ref,
		}, nil
	})
}

func (d *Dispatcher) solveComplexTask(ctx context.Context, sessionID string, call domain.FunctionCallIntent) error {
	prompt := call.StringArg("prompt")

	return d.withPlaceholder(ctx, sessionID, fmt.Sprintf(config.PlaceholderReasoning, prompt), func() (domain.Message, error) {
		if prompt == "" {
			return domain.Message{}, errors.New("solve complex task: empty prompt")
		}
		answer, err := d.backend.SolveComplexTask(ctx, prompt)
		if err != nil {
			return domain.Message{}, err
		}
		return domain.Message{ID: newMessageID(), Role: domain.RoleModel, Text: answer}, nil
	})
}

// withPlaceholder commits a thinking placeholder, runs work, then swaps the
// placeholder for the result, or for an error message, in one commit.
func (d *Dispatcher) withPlaceholder(ctx context.Context, sessionID, text string, work func() (domain.Message, error)) error {
	placeholder := domain.Message{ID: newMessageID(), Role: domain.RoleModel, Text: text}
	if err := d.store.AppendMessages(ctx, sessionID, placeholder); err != nil {
		return fmt.Errorf("append placeholder: %w", err)
	}

	final, workErr := work()
	if workErr != nil {
		slog.Error("function call failed", "error", workErr, "session_id", sessionID, "quota", domain.IsQuota(workErr))
		final = errorMessage(workErr)
	}

	err := d.store.UpdateMessages(ctx, sessionID, func(cur []domain.Message) []domain.Message {
		cur = slices.DeleteFunc(cur, func(m domain.Message) bool { return m.ID == placeholder.ID })
		return append(cur, final)
	})
	if err != nil {
		slog.Error("replace placeholder", "error", err, "session_id", sessionID)
	}
	return workErr
}

func (d *Dispatcher) appendError(ctx context.Context, sessionID string, cause error) {
	if err := d.store.AppendMessages(ctx, sessionID, errorMessage(cause)); err != nil {
		slog.Error("append error message", "error", err, "session_id", sessionID)
	}
}

func errorMessage(cause error) domain.Message {
	text := config.ErrorTextGeneric
	if domain.IsQuota(cause) {
		text = config.ErrorTextQuota
	}
	return domain.Message{ID: newMessageID(), Role: domain.RoleModel, Text: text, IsError: true}
}

func normalizeAspectRatio(r string) string {
	r = strings.ReplaceAll(strings.TrimSpace(r), " ", "")
	if slices.Contains(config.SupportedAspectRatios, r) {
		return r
	}
	return config.DefaultAspectRatio
}

var appAliases = map[string]string{
	"email":       "email",
	"mail":        "email",
	"gmail":       "email",
	"phone":       "phone",
	"call":        "phone",
	"dialer":      "phone",
	"sms":         "sms",
	"text":        "sms",
	"messages":    "sms",
	"maps":        "maps",
	"map":         "maps",
	"google maps": "maps",
	"spotify":     "spotify",
	"music":       "spotify",
}

// ResolveAppURI maps an application name and query to the URI that opens
// it. ok is false for unknown applications.
func ResolveAppURI(appName, query string) (string, bool) {
	app, ok := appAliases[strings.ToLower(strings.TrimSpace(appName))]
	if !ok {
		return "", false
	}
	query = strings.TrimSpace(query)
	switch app {
	case "email":
		if strings.Contains(query, "@") && !strings.ContainsAny(query, " \t") {
			return "mailto:" + query, true
		}
		return "mailto:?body=" + url.QueryEscape(query), true
	case "phone":
		return "tel:" + dialable(query), true
	case "sms":
		return "sms:" + dialable(query), true
	case "maps":
		return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(query), true
	case "spotify":
		return "spotify:search:" + url.PathEscape(query), true
	}
	return "", false
}

// dialable keeps digits and a leading plus sign.
func dialable(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return url.PathEscape(s)
	}
	return b.String()
}
