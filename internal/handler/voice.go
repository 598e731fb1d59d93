package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/domain"
	tg "github.com/set-night/mindvoice/internal/telegram"
	"github.com/set-night/mindvoice/internal/voice"
)

const (
	cbVoicePrefix  = "voice_"
	cbVoiceAuto    = "voice_auto"
	cbVoiceSpeech  = "voice_speech"
	cbVoiceRecheck = "voice_recheck"
)

const voiceDisabledText = "🔇 Voice is disabled on this host."

func (h *Handler) handleListen(ctx context.Context, b *bot.Bot, update *models.Update) {
	if h.voice == nil {
		h.reply(ctx, voiceDisabledText)
		return
	}
	err := h.voice.Arbiter.ManualListen(ctx)
	switch {
	case err == nil:
		h.reply(ctx, "🎙 Listening…")
	case errors.Is(err, domain.ErrMicDenied):
		h.reply(ctx, "🚫 Microphone access is denied. Allow it in the system settings, then use /voice to re-check.")
	case errors.Is(err, domain.ErrMicUnsupported):
		h.reply(ctx, "🚫 Speech recognition is not supported on this host.")
	default:
		slog.Error("manual listen", "error", err)
		h.reply(ctx, fmt.Sprintf("❌ Could not start listening: %v", err))
	}
}

func (h *Handler) handleStop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if h.voice == nil {
		h.reply(ctx, voiceDisabledText)
		return
	}
	h.voice.Input.Stop()
	h.voice.Output.Stop()
	h.reply(ctx, "⏹ Stopped. Automatic listening resumes after your next message.")
}

func (h *Handler) handleVoice(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if h.voice == nil {
		h.reply(ctx, voiceDisabledText)
		return
	}
	text, keyboard := h.voicePanel()
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      h.cfg.OwnerChatID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
}

func (h *Handler) voicePanel() (string, *models.InlineKeyboardMarkup) {
	autoListen, speech := h.voice.Auto.Settings()
	return h.voicePanelWith(autoListen, speech)
}

func (h *Handler) voicePanelWith(autoListen, speech bool) (string, *models.InlineKeyboardMarkup) {
	state, message := voice.State(h.voice.Input.Status(), h.voice.Output.Playing())
	return voicePanelText(state, message, autoListen, speech), tg.InlineKeyboard(
		tg.ButtonRow(tg.InlineButton(toggleLabel("Auto-listen", autoListen), cbVoiceAuto)),
		tg.ButtonRow(tg.InlineButton(toggleLabel("Speak replies", speech), cbVoiceSpeech)),
		tg.ButtonRow(tg.InlineButton("🔄 Re-check microphone", cbVoiceRecheck)),
	)
}

func voicePanelText(state domain.VoiceState, message string, autoListen, speech bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎛 Voice: %s", state)
	if message != "" {
		fmt.Fprintf(&sb, " (%s)", message)
	}
	fmt.Fprintf(&sb, "\nAuto-listen: %s\nSpeak replies: %s", onOff(autoListen), onOff(speech))
	return sb.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func toggleLabel(name string, on bool) string {
	if on {
		return "✅ " + name
	}
	return "⬜ " + name
}

func (h *Handler) handleVoiceToggle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil || h.voice == nil {
		answer(ctx, b, update, "")
		return
	}

	autoListen, speech := h.voice.Auto.Settings()
	switch update.CallbackQuery.Data {
	case cbVoiceAuto:
		autoListen = !autoListen
		h.voice.Auto.SetEnabled(autoListen)
	case cbVoiceSpeech:
		speech = !speech
		h.voice.Auto.SetSpeechOutput(speech)
	case cbVoiceRecheck:
		if err := h.voice.Input.RefreshPermission(ctx); err != nil {
			slog.Warn("refresh microphone permission", "error", err)
		}
		h.voice.Auto.Kick()
	}
	answer(ctx, b, update, "")


	// Toggles are applied asynchronously by the auto-listen loop.
	msg := update.CallbackQuery.Message.Message
	if msg == nil {
		return
	}
	text, keyboard := h.voicePanelWith(autoListen, speech)
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
}

// VoiceNotifier tells the owner about microphone problems once per change.
type VoiceNotifier struct {
	notify func(ctx context.Context, text string)
	last   voice.InputState
	states chan voice.InputStatus
}

func NewVoiceNotifier(notify func(ctx context.Context, text string)) *VoiceNotifier {
	return &VoiceNotifier{notify: notify, states: make(chan voice.InputStatus, 16)}
}

// Observe is an Input observer; it never blocks.
func (n *VoiceNotifier) Observe(st voice.InputStatus) {
	select {
	case n.states <- st:
	default:
	}
}

func (n *VoiceNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-n.states:
			if text, ok := n.message(st); ok {
				n.notify(ctx, text)
			}
		}
	}
}

func (n *VoiceNotifier) message(st voice.InputStatus) (string, bool) {
	prev := n.last
	n.last = st.State
	if prev == st.State {
		return "", false
	}
	switch st.State {
	case voice.InputDenied:
		return "🚫 Microphone access denied. Voice input is paused until permission is granted.", true
	case voice.InputUnsupported:
		return "🚫 Speech recognition is not available on this host.", true
	case voice.InputTransientError:
		return "⚠️ " + st.Message + " Use /listen to retry.", true
	}
	if prev == voice.InputDenied && st.State == voice.InputIdle {
		return "🎙 Microphone access restored.", true
	}
	return "", false
}
