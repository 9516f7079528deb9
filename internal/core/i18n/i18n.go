package i18n

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localesFS embed.FS

// Translations holds all translation strings organized by section
type Translations struct {
	Errors ErrorTranslations  `yaml:"errors"`
	Server ServerTranslations `yaml:"server"`
	CLI    CLITranslations    `yaml:"cli"`
}

// ErrorTranslations are the reason strings shown to clients
type ErrorTranslations struct {
	NoURL           string `yaml:"no_url"`
	EmptyInput      string `yaml:"empty_input"`
	Network         string `yaml:"network"`
	Timeout         string `yaml:"timeout"`
	NotFound        string `yaml:"not_found"`
	InvalidBody     string `yaml:"invalid_body"`
	Unauthorized    string `yaml:"unauthorized"`
	SessionNotFound string `yaml:"session_not_found"`
	EmptyCookie     string `yaml:"empty_cookie"`
	ProxyMissingURL string `yaml:"proxy_missing_url"`
	ProxyForbidden  string `yaml:"proxy_forbidden"`
	ProxyUpstream   string `yaml:"proxy_upstream"`
	Internal        string `yaml:"internal"`
}

type ServerTranslations struct {
	Starting      string `yaml:"starting"`
	APIKeyEnabled string `yaml:"api_key_enabled"`
	ShuttingDown  string `yaml:"shutting_down"`
	Healthy       string `yaml:"healthy"`
}

type CLITranslations struct {
	Resolving   string `yaml:"resolving"`
	Chosen      string `yaml:"chosen"`
	Candidates  string `yaml:"candidates"`
	NoteID      string `yaml:"note_id"`
	Target      string `yaml:"target"`
	Platform    string `yaml:"platform"`
	ConfigSaved string `yaml:"config_saved"`
	ConfigExist string `yaml:"config_exists"`
}

var (
	translationsCache = make(map[string]*Translations)
	cacheMutex        sync.RWMutex
	defaultLang       = "zh"
)

// SupportedLanguages returns all available language codes
var SupportedLanguages = []struct {
	Code string
	Name string
}{
	{"zh", "中文"},
	{"en", "English"},
}

// Normalize maps Accept-Language style values ("en-US", "zh-CN,zh;q=0.9")
// to a supported code, or "" when none matches
func Normalize(lang string) string {
	for _, part := range strings.Split(lang, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		for _, l := range SupportedLanguages {
			if l.Code == base {
				return base
			}
		}
	}
	return ""
}

// GetTranslations returns translations for the specified language
func GetTranslations(lang string) *Translations {
	cacheMutex.RLock()
	if t, ok := translationsCache[lang]; ok {
		cacheMutex.RUnlock()
		return t
	}
	cacheMutex.RUnlock()

	t, err := loadTranslations(lang)
	if err != nil {
		if lang != defaultLang {
			return GetTranslations(defaultLang)
		}
		return &Translations{}
	}

	cacheMutex.Lock()
	translationsCache[lang] = t
	cacheMutex.Unlock()

	return t
}

func loadTranslations(lang string) (*Translations, error) {
	filename := fmt.Sprintf("locales/%s.yml", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// T is a convenience function for getting translations
func T(lang string) *Translations {
	return GetTranslations(lang)
}
