// File: internal/usecase/command_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
	"whatsapp-ai-bridge/internal/infra/logging"
	"whatsapp-ai-bridge/internal/infra/metrics"
)

// Compile-time check
var _ CommandUseCase = (*commandUC)(nil)

// CommandResult is the outcome of the fast path. Handled commands are
// answered synchronously and never enter the queue or the history.
type CommandResult struct {
	Handled bool
	Reply   string
}

type CommandUseCase interface {
	// Execute intercepts command messages (leading "/"). Non-commands return
	// Handled=false and must be enqueued normally.
	Execute(ctx context.Context, conversationID, text string) (CommandResult, error)
}

var supportedLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"fr": "French",
	"de": "German",
}

type commandUC struct {
	prefs  repository.PreferencesRepository
	logger *zerolog.Logger
}

func NewCommandUseCase(prefs repository.PreferencesRepository, logger *zerolog.Logger) *commandUC {
	return &commandUC{prefs: prefs, logger: logger}
}

// IsCommand reports whether text would take the fast path.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func (c *commandUC) Execute(ctx context.Context, conversationID, text string) (CommandResult, error) {
	if !IsCommand(text) {
		return CommandResult{}, nil
	}

	parts := strings.Fields(strings.TrimSpace(text))
	cmd := strings.ToLower(parts[0])
	logging.With(ctx, c.logger).Info().Str("command", cmd).Msg("fast path command")
	metrics.IncFastPath()

	if cmd == "/help" {
		return CommandResult{Handled: true, Reply: helpText()}, nil
	}

	prefs, err := c.prefs.Get(ctx, conversationID)
	if err != nil {
		return CommandResult{}, err
	}

	switch cmd {
	case "/settings":
		return CommandResult{Handled: true, Reply: formatSettings(prefs)}, nil
	case "/tts":
		reply, changed := handleTTS(prefs, parts)
		if changed {
			if err := c.prefs.Set(ctx, conversationID, prefs); err != nil {
				return CommandResult{}, err
			}
		}
		return CommandResult{Handled: true, Reply: reply}, nil
	case "/stt":
		reply, changed := handleSTT(prefs, parts)
		if changed {
			if err := c.prefs.Set(ctx, conversationID, prefs); err != nil {
				return CommandResult{}, err
			}
		}
		return CommandResult{Handled: true, Reply: reply}, nil
	default:
		reply := fmt.Sprintf("Unknown command '%s'. Use /help to see available commands.", cmd)
		return CommandResult{Handled: true, Reply: reply}, nil
	}
}

func languageCodes() string {
	codes := make([]string, 0, len(supportedLanguages))
	for c := range supportedLanguages {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return strings.Join(codes, ", ")
}

func languageName(code string) string {
	if n, ok := supportedLanguages[code]; ok {
		return n
	}
	return code
}

func helpText() string {
	return fmt.Sprintf(`Available commands:

/settings - Show current settings
/tts on - Enable voice responses
/tts off - Disable voice responses
/tts lang [code] - Set TTS language
/stt lang [code] - Set transcription language
/stt lang auto - Use auto-detection for STT
/help - Show this message

Language codes: %s`, languageCodes())
}

func formatSettings(prefs *model.Preferences) string {
	ttsStatus := "disabled"
	if prefs.TTSEnabled {
		ttsStatus = "enabled"
	}
	sttLang := "auto-detect"
	if prefs.STTLanguage != "" {
		sttLang = languageName(prefs.STTLanguage)
	}
	return fmt.Sprintf(`Your current settings:
- TTS: %s
- TTS Language: %s
- STT Language: %s

Use /help to see available commands.`, ttsStatus, languageName(prefs.TTSLanguage), sttLang)
}

func handleTTS(prefs *model.Preferences, parts []string) (reply string, changed bool) {
	if len(parts) < 2 {
		status := "disabled"
		if prefs.TTSEnabled {
			status = "enabled"
		}
		return fmt.Sprintf("TTS is currently %s. Use '/tts on', '/tts off', or '/tts lang [code]'.", status), false
	}

	switch strings.ToLower(parts[1]) {
	case "on":
		prefs.TTSEnabled = true
		return "TTS has been enabled. I will now respond with voice messages.", true
	case "off":
		prefs.TTSEnabled = false
		return "TTS has been disabled. I will respond with text only.", true
	case "lang":
		if len(parts) < 3 {
			return fmt.Sprintf("Current TTS language: %s. Usage: /tts lang [code]. Available: %s",
				languageName(prefs.TTSLanguage), languageCodes()), false
		}
		code := strings.ToLower(parts[2])
		if _, ok := supportedLanguages[code]; !ok {
			return fmt.Sprintf("Invalid language code '%s'. Available: %s", code, languageCodes()), false
		}
		prefs.TTSLanguage = code
		return fmt.Sprintf("TTS language set to %s.", languageName(code)), true
	default:
		return "Unknown TTS command. Use '/tts on', '/tts off', or '/tts lang [code]'.", false
	}
}

func handleSTT(prefs *model.Preferences, parts []string) (reply string, changed bool) {
	current := "auto-detect"
	if prefs.STTLanguage != "" {
		current = languageName(prefs.STTLanguage)
	}
	if len(parts) < 2 {
		return fmt.Sprintf("STT language is currently: %s. Use '/stt lang [code]' or '/stt lang auto'.", current), false
	}
	if strings.ToLower(parts[1]) != "lang" {
		return "Unknown STT command. Use '/stt lang [code]' or '/stt lang auto'.", false
	}
	if len(parts) < 3 {
		return fmt.Sprintf("Current STT language: %s. Usage: /stt lang [code|auto]. Available: %s",
			current, languageCodes()), false
	}

	code := strings.ToLower(parts[2])
	if code == "auto" {
		prefs.STTLanguage = ""
		return "STT language set to auto-detect.", true
	}
	if _, ok := supportedLanguages[code]; !ok {
		return fmt.Sprintf("Invalid language code '%s'. Available: %s, auto", code, languageCodes()), false
	}
	prefs.STTLanguage = code
	return fmt.Sprintf("STT language set to %s.", languageName(code)), true
}
