package service

import (
	"strings"

	"github.com/set-night/mindvoice/internal/config"
)

type Command int

const (
	CommandNone Command = iota
	CommandNewChat
	CommandDeleteChat
	CommandClearHistory
	CommandHelp
)

var commandVocabulary = map[string]Command{
	config.CommandNewChat:      CommandNewChat,
	config.CommandDeleteChat:   CommandDeleteChat,
	config.CommandClearHistory: CommandClearHistory,
	config.CommandHelp:         CommandHelp,
}

// ParseCommand matches the trimmed, case-insensitive prompt exactly
// against the command vocabulary.
func ParseCommand(prompt string) (Command, bool) {
	cmd, ok := commandVocabulary[strings.ToLower(strings.TrimSpace(prompt))]
	return cmd, ok
}
