// Package i18n loads the per-language catalogs (shake phrases, UI messages,
// skin names with grammatical cases) and negotiates the request language.
package i18n

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"shakethefrog/internal/config"
	"shakethefrog/internal/shake"
	logx "shakethefrog/pkg/logx"
)

// DefaultLanguage is the canonical locale every other locale falls back to.
const DefaultLanguage = "en"

const (
	nsCharacter = "character"
	nsUI        = "ui"
	nsSkins     = "skins"
)

// UI message keys.
const (
	KeyEnableDeviceShake          = "enableDeviceShake"
	KeyShakeInstructionsMobile    = "shakeInstructionsMobile"
	KeyShakeInstructionsDesktop   = "shakeInstructionsDesktop"
	KeyNoShakeInstructionsMobile  = "noShakeInstructionsMobile"
	KeyNoShakeInstructionsDesktop = "noShakeInstructionsDesktop"
)

// ItemPlaceholder is replaced by the (declined) skin name.
const ItemPlaceholder = "{item}"

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

type catalogFile struct {
	Locale    string              `yaml:"locale"`
	Namespace string              `yaml:"namespace"`
	Phrases   []string            `yaml:"phrases"`
	Messages  map[string]string   `yaml:"messages"`
	Cases     map[string]Case     `yaml:"cases"`
	Names     map[string]SkinName `yaml:"names"`
}

// Locale is everything loaded for one language.
type Locale struct {
	Code    string
	Phrases []string
	UI      map[string]string
	// Cases selects the grammatical case of {item} per UI key.
	Cases map[string]Case
	Skins map[string]SkinName
}

func newLocale(code string) *Locale {
	return &Locale{
		Code:  code,
		UI:    map[string]string{},
		Cases: map[string]Case{},
		Skins: map[string]SkinName{},
	}
}

func (l *Locale) merge(path string, f catalogFile) error {
	switch strings.TrimSpace(f.Namespace) {
	case nsCharacter:
		phrases := make([]string, 0, len(f.Phrases))
		for _, p := range f.Phrases {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) > 0 {
			l.Phrases = phrases
		}
	case nsUI:
		for k, v := range f.Messages {
			k = strings.TrimSpace(k)
			if k == "" {
				return fmt.Errorf("catalog %s: message key cannot be blank", path)
			}
			l.UI[k] = v
		}
		for k, c := range f.Cases {
			if !c.valid() {
				return fmt.Errorf("catalog %s: unknown case %q for %q", path, c, k)
			}
			l.Cases[strings.TrimSpace(k)] = c
		}
	case nsSkins:
		for id, n := range f.Names {
			l.Skins[strings.ToLower(strings.TrimSpace(id))] = n
		}
	case "":
		return fmt.Errorf("catalog %s: namespace is required", path)
	default:
		return fmt.Errorf("catalog %s: unknown namespace %q", path, f.Namespace)
	}
	return nil
}

func (l *Locale) clone() *Locale {
	out := newLocale(l.Code)
	out.Phrases = append([]string(nil), l.Phrases...)
	for k, v := range l.UI {
		out.UI[k] = v
	}
	for k, v := range l.Cases {
		out.Cases[k] = v
	}
	for k, v := range l.Skins {
		out.Skins[k] = v
	}
	return out
}

func parseCatalogFile(data []byte) (catalogFile, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return catalogFile{}, err
	}
	return f, nil
}

// loadFS reads every file matching pattern into locales. When strictPath is
// set the locale must match the parent directory name.
func loadFS(fsys fs.FS, pattern string, strictPath bool, locales map[string]*Locale) error {
	paths, err := fs.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("glob catalogs: %w", err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read catalog %s: %w", path, err)
		}
		f, err := parseCatalogFile(data)
		if err != nil {
			return fmt.Errorf("parse catalog %s: %w", path, err)
		}
		code := strings.ToLower(strings.TrimSpace(f.Locale))
		if code == "" {
			return fmt.Errorf("catalog %s: locale is required", path)
		}
		if strictPath {
			if dir := filepath.Base(filepath.Dir(path)); dir != code {
				return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, code, dir)
			}
		}
		l, ok := locales[code]
		if !ok {
			l = newLocale(code)
			locales[code] = l
		}
		if err := l.merge(path, f); err != nil {
			return err
		}
	}
	return nil
}

func loadEmbedded() (map[string]*Locale, error) {
	locales := map[string]*Locale{}
	if err := loadFS(embeddedCatalogFS, "locales/*/*.yaml", true, locales); err != nil {
		return nil, err
	}
	base, ok := locales[DefaultLanguage]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", DefaultLanguage)
	}
	if len(base.Phrases) == 0 {
		return nil, fmt.Errorf("base locale %s has no phrases", DefaultLanguage)
	}
	for code, l := range locales {
		for key := range l.UI {
			if _, ok := base.UI[key]; !ok {
				return nil, fmt.Errorf("locale %s: key %q is not defined in base locale", code, key)
			}
		}
	}
	return locales, nil
}

// Options configures a Bundle.
type Options struct {
	// Default is the fallback language; it must be one of the embedded ones.
	Default string
	// OverrideDir holds *.yaml catalog files merged over the embedded ones.
	OverrideDir string
	Logger      logx.Logger
}

// Bundle holds the loaded catalogs. It is safe for concurrent use and can be
// reloaded while serving.
type Bundle struct {
	def         string
	overrideDir string
	log         logx.Logger
	neg         *negotiator

	mu      sync.RWMutex
	locales map[string]*Locale
}

// New loads the embedded catalogs plus the optional override directory.
func New(opts Options) (*Bundle, error) {
	embedded, err := loadEmbedded()
	if err != nil {
		return nil, err
	}
	def := strings.ToLower(strings.TrimSpace(opts.Default))
	if def == "" {
		def = DefaultLanguage
	}
	if _, ok := embedded[def]; !ok {
		return nil, fmt.Errorf("default language %q is not supported", def)
	}
	codes := make([]string, 0, len(embedded))
	for code := range embedded {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	neg, err := newNegotiator(def, codes)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		def:         def,
		overrideDir: strings.TrimSpace(opts.OverrideDir),
		log:         opts.Logger,
		neg:         neg,
		locales:     embedded,
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-reads the override directory over a fresh copy of the embedded
// catalogs. On error the previous catalogs stay active.
func (b *Bundle) Reload() error {
	embedded, err := loadEmbedded()
	if err != nil {
		return err
	}
	if b.overrideDir != "" {
		if _, err := os.Stat(b.overrideDir); err == nil {
			overrides := make(map[string]*Locale, len(embedded))
			for code, l := range embedded {
				overrides[code] = l.clone()
			}
			if err := loadFS(os.DirFS(b.overrideDir), "*.yaml", false, overrides); err != nil {
				return fmt.Errorf("override catalogs: %w", err)
			}
			for code := range overrides {
				if _, ok := embedded[code]; !ok {
					return fmt.Errorf("override catalogs: unsupported locale %q", code)
				}
			}
			embedded = overrides
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("override catalogs: %w", err)
		}
	}
	b.mu.Lock()
	b.locales = embedded
	b.mu.Unlock()
	return nil
}

// Watch reloads the bundle when the override directory changes. It blocks
// until ctx is done.
func (b *Bundle) Watch(ctx context.Context) {
	if b.overrideDir == "" {
		return
	}
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		if err := b.Reload(); err != nil {
			b.log.Warn("catalog reload failed; keeping previous", logx.String("dir", b.overrideDir), logx.Err(err))
			return
		}
		b.log.Info("catalogs reloaded", logx.String("dir", b.overrideDir))
	}
	config.WatchDir(ctx, b.overrideDir, b.log, func(name string) {
		if name != "" && !strings.HasSuffix(name, ".yaml") {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, reload)
	})
	mu.Lock()
	if timer != nil {
		timer.Stop()
	}
	mu.Unlock()
}

// Default returns the fallback language.
func (b *Bundle) Default() string { return b.def }

// Languages lists the supported language codes.
func (b *Bundle) Languages() []string { return b.neg.codes() }

// Supports reports whether lang is one of the loaded languages.
func (b *Bundle) Supports(lang string) bool {
	_, ok := b.neg.exact(lang)
	return ok
}

// Normalize maps any language tag to a supported code, falling back to the
// default language.
func (b *Bundle) Normalize(lang string) string { return b.neg.normalize(lang) }

// Next returns the language after lang in stable order, wrapping around.
func (b *Bundle) Next(lang string) string {
	codes := b.neg.codes()
	lang = b.Normalize(lang)
	for i, c := range codes {
		if c == lang {
			return codes[(i+1)%len(codes)]
		}
	}
	return b.def
}

func (b *Bundle) locale(lang string) (*Locale, *Locale) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.locales[b.Normalize(lang)], b.locales[b.def]
}

// Messages returns the phrase list for lang, falling back to the default
// language when lang has none.
func (b *Bundle) Messages(lang string) []string {
	l, base := b.locale(lang)
	if l != nil && len(l.Phrases) > 0 {
		return append([]string(nil), l.Phrases...)
	}
	if base != nil {
		return append([]string(nil), base.Phrases...)
	}
	return nil
}

// Catalog adapts the bundle to the shake message catalog for one language.
// Reloads apply to the next message.
func (b *Bundle) Catalog(lang string) shake.CatalogFunc {
	lang = b.Normalize(lang)
	return func() []string { return b.Messages(lang) }
}

// UIMessages returns every UI message for lang with fallbacks applied and
// {item} left in place.
func (b *Bundle) UIMessages(lang string) map[string]string {
	l, base := b.locale(lang)
	out := map[string]string{}
	if base != nil {
		for k, v := range base.UI {
			out[k] = v
		}
	}
	if l != nil {
		for k, v := range l.UI {
			out[k] = v
		}
	}
	return out
}

// UIMessage returns the message for key with {item} replaced. Unknown keys
// return the key itself.
func (b *Bundle) UIMessage(lang, key, item string) string {
	l, base := b.locale(lang)
	msg, ok := "", false
	if l != nil {
		msg, ok = l.UI[key]
	}
	if !ok && base != nil {
		msg, ok = base.UI[key]
	}
	if !ok {
		return key
	}
	return strings.ReplaceAll(msg, ItemPlaceholder, item)
}

// CaseFor returns the grammatical case {item} takes in key for lang.
func (b *Bundle) CaseFor(lang, key string) Case {
	l, _ := b.locale(lang)
	if l != nil {
		if c, ok := l.Cases[key]; ok {
			return c
		}
	}
	return Nominative
}

// Instruction renders key for the given skin, declining the skin name as
// the language requires.
func (b *Bundle) Instruction(lang, key, skinID string) string {
	return b.UIMessage(lang, key, b.SkinName(skinID, lang, b.CaseFor(lang, key)))
}

// SkinName returns the localized skin name in case c. Missing forms fall
// back to the nominative, then to the default language, then to the id.
func (b *Bundle) SkinName(skinID, lang string, c Case) string {
	id := strings.ToLower(strings.TrimSpace(skinID))
	l, base := b.locale(lang)
	if l != nil {
		if n, ok := l.Skins[id]; ok {
			if s := n.Form(c); s != "" {
				return s
			}
		}
	}
	if base != nil {
		if n, ok := base.Skins[id]; ok {
			if s := n.Form(c); s != "" {
				return s
			}
		}
	}
	return skinID
}
