package session

import (
	"errors"
	"fmt"
	"strings"
)

// Message keys resolved through the Translator.
const (
	MessageSaveText        = "session.save.text"
	MessageSaveWarning     = "session.save.warning"
	MessageRequiredMissing = "session.validation.required"
)

// Supported built-in locales.
const (
	LocaleEnglish = "en-ca"
	LocaleFrench  = "fr-ca"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = LocaleEnglish

// ErrMissingTranslation is returned by the built-in catalog for unknown keys.
var ErrMissingTranslation = errors.New("session: missing translation")

// Translator resolves a message key for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate delegates to the underlying function.
func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

var builtinMessages = map[string]map[string]string{
	LocaleEnglish: {
		MessageSaveText:        "Save",
		MessageSaveWarning:     "You cannot modify your answers after clicking this button. Please ensure all answers are correct.",
		MessageRequiredMissing: "Please fill in the required fields indicated below.",
	},
	LocaleFrench: {
		MessageSaveText:        "Enregistrer",
		MessageSaveWarning:     "Vous ne pouvez pas modifier vos réponses après avoir cliqué sur ce bouton. Assurez-vous que toutes les réponses sont correctes.",
		MessageRequiredMissing: "Veuillez remplir les champs obligatoires indiqués ci-dessous.",
	},
}

// Catalog is the built-in en-ca / fr-ca message table.
type Catalog struct{}

// Translate looks key up for locale, ignoring case in the locale tag.
func (Catalog) Translate(locale, key string, args ...any) (string, error) {
	table, ok := builtinMessages[strings.ToLower(strings.TrimSpace(locale))]
	if !ok {
		return "", fmt.Errorf("%w: locale %q", ErrMissingTranslation, locale)
	}
	msg, ok := table[key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...), nil
	}
	return msg, nil
}

// translate resolves key through t, falling back to the built-in catalog and
// finally to the English text.
func translate(t Translator, locale, key string) string {
	if t != nil {
		if msg, err := t.Translate(locale, key); err == nil && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	if msg, err := (Catalog{}).Translate(locale, key); err == nil {
		return msg
	}
	return builtinMessages[DefaultLocale][key]
}
