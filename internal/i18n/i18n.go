// Package i18n provides the localized UI string catalog. Bundles are
// embedded YAML, one file per language; lookups fall back to English and
// then to the key itself, so a missing translation never breaks a screen.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localeFS embed.FS

// FallbackLang is the reference language every bundle is validated against.
const FallbackLang = "en"

// supported lists the shipped bundle codes in display order.
var supported = []string{"en", "de", "es", "ja", "ko", "zh-CN"}

var (
	mu      sync.RWMutex
	current = FallbackLang

	loadOnce sync.Once
	catalog  map[string]map[string]string
)

// load parses every embedded bundle once. The meta section and any
// non-string values are skipped.
func load() {
	loadOnce.Do(func() {
		catalog = make(map[string]map[string]string, len(supported))
		for _, lang := range supported {
			data, err := localeFS.ReadFile("locales/" + localeFile(lang))
			if err != nil {
				continue
			}
			var raw map[string]any
			if err := yaml.Unmarshal(data, &raw); err != nil {
				continue
			}
			bundle := make(map[string]string, len(raw))
			for key, value := range raw {
				if text, ok := value.(string); ok {
					bundle[key] = text
				}
			}
			catalog[lang] = bundle
		}
	})
}

// localeFile maps a language code to its bundle filename (zh-CN -> zh_CN.yml).
func localeFile(lang string) string {
	return strings.ReplaceAll(lang, "-", "_") + ".yml"
}

// Supported returns the shipped language codes.
func Supported() []string {
	return append([]string(nil), supported...)
}

// Normalize resolves code to a supported language code, accepting
// underscore variants ("zh_CN") and region-carrying locales ("en-US",
// "zh-Hans"). It returns empty when nothing matches.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}

	lower := strings.ToLower(code)
	for _, lang := range supported {
		if strings.ToLower(lang) == lower {
			return lang
		}
	}

	prefix, _, _ := strings.Cut(lower, "-")
	for _, lang := range supported {
		langPrefix, _, _ := strings.Cut(strings.ToLower(lang), "-")
		if langPrefix == prefix {
			return lang
		}
	}

	return ""
}

// SetLang switches the active language. "auto" detects from the
// environment; unknown codes fall back to English.
func SetLang(code string) {
	if code == "auto" || code == "" {
		code = DetectSystemLang()
	}
	resolved := Normalize(code)
	if resolved == "" {
		resolved = FallbackLang
	}

	mu.Lock()
	current = resolved
	mu.Unlock()
}

// Lang returns the active language code.
func Lang() string {
	mu.RLock()
	defer mu.RUnlock()

	return current
}

// DetectSystemLang resolves the best supported language from LANG/LC_ALL.
func DetectSystemLang() string {
	loc := os.Getenv("LANG")
	if loc == "" {
		loc = os.Getenv("LC_ALL")
	}
	loc, _, _ = strings.Cut(loc, ".")
	if resolved := Normalize(loc); resolved != "" {
		return resolved
	}

	return FallbackLang
}

// T returns the localized string for key in the active language, falling
// back to English and then to the key itself. Arguments interpolate via
// Sprintf when the template carries verbs.
func T(key string, args ...any) string {
	load()

	mu.RLock()
	lang := current
	mu.RUnlock()

	text, ok := catalog[lang][key]
	if !ok {
		text, ok = catalog[FallbackLang][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return text
	}

	return fmt.Sprintf(text, args...)
}
