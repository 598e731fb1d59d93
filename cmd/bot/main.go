package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	mindvoiceroot "github.com/set-night/mindvoice"
	"github.com/set-night/mindvoice/internal/audio"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/gemini"
	"github.com/set-night/mindvoice/internal/handler"
	"github.com/set-night/mindvoice/internal/launcher"
	"github.com/set-night/mindvoice/internal/media"
	"github.com/set-night/mindvoice/internal/middleware"
	"github.com/set-night/mindvoice/internal/repository"
	"github.com/set-night/mindvoice/internal/service"
	"github.com/set-night/mindvoice/internal/telegram"
	"github.com/set-night/mindvoice/internal/voice"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store and sessions
	migrationsFS, err := fs.Sub(mindvoiceroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	records, err := repository.Open(ctx, repository.OpenOptions{
		DatabaseURL: cfg.DatabaseURL,
		DataDir:     cfg.DataDir,
		Migrations:  migrationsFS,
	})
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer records.Close()

	store := service.NewSessionStore(records)
	store.Load(ctx)

	mediaStore, err := media.Open(media.S3Config{
		Bucket:    cfg.MediaS3Bucket,
		Prefix:    cfg.MediaS3Prefix,
		Region:    cfg.MediaS3Region,
		Endpoint:  cfg.MediaS3Endpoint,
		AccessKey: cfg.MediaS3AccessKey,
		SecretKey: cfg.MediaS3SecretKey,
	}, cfg.DataDir)
	if err != nil {
		slog.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	// Generative backend
	backend, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, gemini.ModelsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	// Handler pointer for use in closures registered before it exists
	var h *handler.Handler
	var tgLogger *telegram.Logger

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(func(err error, where string) { tgLogger.LogError(err, where) }),
			middleware.Logging(),
			middleware.OwnerOnly(cfg.IsOwner),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.Default(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	tgLogger = telegram.NewLogger(b, cfg.LogTelegramChatID)
	notify := func(ctx context.Context, text string) {
		if _, err := telegram.SendLongMessage(ctx, b, cfg.OwnerChatID, text, nil); err != nil {
			slog.Error("notify owner", "error", err)
		}
	}

	// Conversation core
	confirmer := handler.NewConfirmer(handler.NewPrompter(b, cfg.OwnerChatID), cfg.ConfirmTimeout)
	links := handler.NewLinkLauncher(launcher.NewSystem(), notify)
	dispatcher := service.NewDispatcher(store, backend, mediaStore, links)
	conversation := service.NewConversation(store, backend, dispatcher, confirmer)

	// Session rendering
	renderer := handler.NewRenderer(handler.NewChatMessenger(b, cfg.OwnerChatID), mediaStore)
	store.Subscribe(renderer.Publish)
	renderer.Publish(store.Snapshot())
	go renderer.Run(ctx)

	// Voice
	var voiceDeps *handler.Voice
	var speaker *audio.Speaker
	if cfg.VoiceEnabled {
		speaker, err = audio.NewSpeaker()
		if err != nil {
			slog.Warn("voice disabled: no audio output", "error", err)
		} else {
			voiceDeps = buildVoice(cfg, store, conversation, backend, speaker, func(ctx context.Context, text string) {
				h.SendTranscript(ctx, text)
			})
		}
	}

	h = handler.New(handler.Deps{
		Bot:          b,
		Cfg:          cfg,
		Store:        store,
		Conversation: conversation,
		Studio:       service.NewStudio(backend, mediaStore),
		Search:       service.NewSearch(backend),
		Media:        mediaStore,
		Transcriber:  backend,
		Voice:        voiceDeps,
		Confirmer:    confirmer,
		TgLogger:     tgLogger,
	})
	h.Register()

	if voiceDeps != nil {
		startVoice(ctx, cfg, voiceDeps, notify)
	}

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	h.Wait()
	conversation.WaitTitles()
	if voiceDeps != nil {
		voiceDeps.Input.Wait()
		voiceDeps.Output.Wait()
	}
	if speaker != nil {
		if err := speaker.Close(); err != nil {
			slog.Warn("close speaker", "error", err)
		}
	}
	slog.Info("bot stopped gracefully")
}

// buildVoice wires the microphone, the speaker and the auto-listen policy.
func buildVoice(
	cfg *config.Config,
	store *service.SessionStore,
	conversation *service.Conversation,
	backend *gemini.Client,
	speaker *audio.Speaker,
	sink voice.TranscriptSink,
) *handler.Voice {
	capture := audio.NewCapture(cfg.MicDevice)
	recognizer := voice.NewMicRecognizer(capture, backend, cfg.VoiceLocale, cfg.ListenWindow)

	input := voice.NewInput(recognizer, sink)
	output := voice.NewOutput(backend, speaker)
	arbiter := voice.NewArbiter(input, output)
	auto := voice.NewAutoListen(arbiter, input, output, func() (domain.Message, bool) {
		return store.Active().Last()
	}, voice.AutoListenOptions{
		Enabled:      cfg.AutoListen,
		SpeechOutput: cfg.SpeechOutput,
		Voice:        cfg.VoiceName,
	})
	conversation.Observe(auto)
	store.Subscribe(func(domain.SessionCollection) { auto.Kick() })

	return &handler.Voice{Input: input, Output: output, Arbiter: arbiter, Auto: auto}
}

// startVoice runs the voice loops until ctx ends.
func startVoice(ctx context.Context, cfg *config.Config, v *handler.Voice, notify func(ctx context.Context, text string)) {
	notifier := handler.NewVoiceNotifier(notify)
	v.Input.OnChange(notifier.Observe)

	go notifier.Run(ctx)
	go v.Input.Run(ctx)
	go v.Auto.Run(ctx)
	go v.Input.WatchPermission(ctx, config.MicPermissionPoll)

	slog.Info("voice ready", "auto_listen", cfg.AutoListen, "speech_output", cfg.SpeechOutput, "locale", cfg.VoiceLocale)
}
