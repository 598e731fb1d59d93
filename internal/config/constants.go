package config

import "time"

const (
	// Persisted session collection record
	SessionStoreKey = "mindvoice:sessions"

	// Session defaults
	DefaultSessionTitle = "New Chat"
	GreetingText        = "Hello! I'm your assistant. Ask me anything, send a picture, or just talk to me."

	// Title generation
	TitleMaxRunes = 60

	// Turn failures
	ErrorTextGeneric = "Sorry, something went wrong while talking to the assistant. Please try again."
	ErrorTextQuota   = "The assistant has run out of quota for now. Please wait a little or check the API plan, then try again."

	// Thinking placeholders
	PlaceholderImage     = "🎨 Generating an image: %s"
	PlaceholderReasoning = "🧠 Thinking hard about: %s"
	GeneratedImageText   = "Here is the image for: %s"

	// Default image aspect ratio when the model omits one
	DefaultAspectRatio = "1:1"

	// Backend call timeout used by the Telegram surface for side modes
	RequestTimeout = 90 * time.Second

	// Citation title lookups
	SourceTitleTimeout = 5 * time.Second
	MaxSourceLookups   = 5

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Recent photos remembered for /combine
	StudioRecentPhotos = 4

	// Microphone permission re-check while denied
	MicPermissionPoll = 30 * time.Second
)

// Command vocabulary, matched on trimmed, case-insensitive input.
const (
	CommandNewChat      = "new chat"
	CommandDeleteChat   = "delete this chat"
	CommandClearHistory = "clear history"
	CommandHelp         = "help"
)

const HelpText = "You can type or speak to me. Commands:\n" +
	"• \"new chat\" starts a fresh conversation\n" +
	"• \"delete this chat\" removes the current conversation\n" +
	"• \"clear history\" removes every conversation\n" +
	"• \"help\" shows this message\n" +
	"I can also open apps (email, phone, sms, maps, spotify), generate images and work through hard problems."

const (
	ConfirmDeleteChat   = "Delete this chat? This cannot be undone."
	ConfirmClearHistory = "Delete every chat? This cannot be undone."
)

// SupportedAspectRatios accepted by image generation.
var SupportedAspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

// Telegram caption limit for photos.
const MaxTelegramCaptionLen = 1024
