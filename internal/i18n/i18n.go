// Package i18n loads the translation bundle and exposes localizers for the
// languages shipped under locales/.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// NewBundle parses every locales/active.<lang>.json file into a bundle.
// English is the fallback language.
func NewBundle() (*goi18n.Bundle, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", name, err)
		}
	}
	return bundle, nil
}

// Localizer translates the strings embedded in calendar events and reminder
// emails. It satisfies the anniversary engine's Localizer interface.
type Localizer struct {
	localizer *goi18n.Localizer
	lang      string
}

// NewLocalizer returns a localizer for the given BCP 47 tag, falling back to
// English for messages the language does not cover.
func NewLocalizer(bundle *goi18n.Bundle, lang string) *Localizer {
	return &Localizer{
		localizer: goi18n.NewLocalizer(bundle, lang),
		lang:      lang,
	}
}

// T renders a message with template data. A missing message falls back to
// its ID so output is never empty.
func (l *Localizer) T(messageID string, data map[string]interface{}) string {
	msg, err := l.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	// go-i18n reports a non-nil error when it fell back to another language
	// but still hands back the fallback translation.
	if err != nil && msg == "" {
		return messageID
	}
	return msg
}

// N renders a pluralized message. The count selects the plural form and is
// available to the template as {{.Count}}.
func (l *Localizer) N(messageID string, count int) string {
	msg, err := l.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: map[string]interface{}{"Count": count},
		PluralCount:  count,
	})
	if err != nil && msg == "" {
		return messageID
	}
	return msg
}

// FormatDate writes a date the way the locale writes dates, with translated
// month names.
func (l *Localizer) FormatDate(t time.Time) string {
	return l.T("DateFormat", map[string]interface{}{
		"Day":   t.Day(),
		"Month": l.T("Month"+t.Month().String(), nil),
		"Year":  t.Year(),
	})
}

// Language returns the tag the localizer was built for.
func (l *Localizer) Language() string {
	return l.lang
}
