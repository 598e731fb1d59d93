package handler

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/media"
	"github.com/set-night/mindvoice/internal/service"
	"github.com/set-night/mindvoice/internal/telegram"
	"github.com/set-night/mindvoice/internal/voice"
)

// Voice groups the voice controllers. It is nil when voice is disabled.
type Voice struct {
	Input   *voice.Input
	Output  *voice.Output
	Arbiter *voice.Arbiter
	Auto    *voice.AutoListen
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot          *bot.Bot
	cfg          *config.Config
	store        *service.SessionStore
	conversation *service.Conversation
	studio       *service.Studio
	search       *service.Search
	media        *media.Store
	transcriber  voice.Transcriber
	voice        *Voice
	confirmer    *Confirmer
	tgLogger     *telegram.Logger

	mu       sync.Mutex
	location *domain.Location
	photos   []string

	wg sync.WaitGroup
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot          *bot.Bot
	Cfg          *config.Config
	Store        *service.SessionStore
	Conversation *service.Conversation
	Studio       *service.Studio
	Search       *service.Search
	Media        *media.Store
	Transcriber  voice.Transcriber
	Voice        *Voice
	Confirmer    *Confirmer
	TgLogger     *telegram.Logger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:          deps.Bot,
		cfg:          deps.Cfg,
		store:        deps.Store,
		conversation: deps.Conversation,
		studio:       deps.Studio,
		search:       deps.Search,
		media:        deps.Media,
		transcriber:  deps.Transcriber,
		voice:        deps.Voice,
		confirmer:    deps.Confirmer,
		tgLogger:     deps.TgLogger,
	}
}

// spawn runs a long operation off the update goroutine so callbacks such as
// confirmations keep flowing while it waits.
func (h *Handler) spawn(ctx context.Context, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until spawned operations have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) reply(ctx context.Context, text string) {
	if _, err := telegram.SendLongMessage(ctx, h.bot, h.cfg.OwnerChatID, text, nil); err != nil {
		h.logError(err, "reply")
	}
}

func (h *Handler) logError(err error, where string) {
	if h.tgLogger != nil {
		h.tgLogger.LogError(err, where)
	}
}

func (h *Handler) rememberPhoto(ref string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.photos = append(h.photos, ref)
	if n := len(h.photos) - config.StudioRecentPhotos; n > 0 {
		h.photos = h.photos[n:]
	}
}

func (h *Handler) recentPhotos() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.photos...)
}

func (h *Handler) setLocation(loc domain.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.location = &loc
}

func (h *Handler) currentLocation() *domain.Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.location == nil {
		return nil
	}
	loc := *h.location
	return &loc
}
