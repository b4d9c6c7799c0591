// Package prefs holds the small persisted user preferences: theme, speech
// output and the provider credential.
package prefs

import (
	"log/slog"
	"strings"
	"sync"

	"oneverse/internal/kv"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultTheme = ThemeDark
)

type Prefs struct {
	mu         sync.RWMutex
	kv         *kv.Store
	logger     *slog.Logger
	theme      Theme
	speech     bool
	credential string
}

func Load(store *kv.Store, logger *slog.Logger) *Prefs {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prefs{
		kv:         store,
		logger:     logger.With("component", "prefs"),
		theme:      kv.Read(store, kv.KeyTheme, DefaultTheme),
		speech:     kv.Read(store, kv.KeySpeech, false),
		credential: strings.TrimSpace(kv.Read(store, kv.KeyCredential, "")),
	}
	if p.theme != ThemeDark && p.theme != ThemeLight {
		p.logger.Warn("unknown theme, using default", "theme", p.theme)
		p.theme = DefaultTheme
	}
	return p
}

func (p *Prefs) Theme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

func (p *Prefs) ToggleTheme() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.theme == ThemeLight {
		p.theme = ThemeDark
	} else {
		p.theme = ThemeLight
	}
	p.kv.Write(kv.KeyTheme, p.theme)
	return p.theme
}

func (p *Prefs) SpeechEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speech
}

func (p *Prefs) ToggleSpeech() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.speech = !p.speech
	p.kv.Write(kv.KeySpeech, p.speech)
	return p.speech
}

func (p *Prefs) Credential() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.credential
}

// SetCredential stores key after trimming. Blank keys are rejected.
func (p *Prefs) SetCredential(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.credential = key
	p.kv.Write(kv.KeyCredential, key)
	return true
}

func (p *Prefs) ClearCredential() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credential = ""
	p.kv.Delete(kv.KeyCredential)
}
