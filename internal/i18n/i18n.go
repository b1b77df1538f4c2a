// internal/i18n/i18n.go
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var instance *I18n
var once sync.Once

var localeFiles = []string{"en.json", "zh_TW.json"}

func Initialize(localesPath, defaultLang string) error {
	var err error
	once.Do(func() {
		instance = New(defaultLang)
		err = instance.LoadTranslations(localesPath)
	})
	return err
}

func New(defaultLang string) *I18n {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return &I18n{
		translations: make(map[string]map[string]string),
		defaultLang:  defaultLang,
	}
}

func (i *I18n) LoadTranslations(localesPath string) error {
	for _, file := range localeFiles {
		lang := strings.TrimSuffix(file, ".json")
		filePath := filepath.Join(localesPath, file)

		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", filePath, err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", filePath, err)
		}

		i.mu.Lock()
		i.translations[lang] = translations
		i.mu.Unlock()
	}

	return nil
}

func (i *I18n) lookup(lang, key string) (string, bool) {
	if translations, exists := i.translations[lang]; exists {
		if text, exists := translations[key]; exists {
			return text, true
		}
	}
	return "", false
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	text, ok := i.lookup(lang, key)
	if !ok && lang != i.defaultLang {
		text, ok = i.lookup(i.defaultLang, key)
	}
	if !ok {
		// Return key if no translation found
		return key
	}

	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// Global functions
func T(lang, key string, args ...interface{}) string {
	if instance != nil {
		return instance.T(lang, key, args...)
	}
	return key
}

// Has reports whether key is translated for lang or the default language.
func Has(lang, key string) bool {
	if instance == nil {
		return false
	}
	instance.mu.RLock()
	defer instance.mu.RUnlock()
	if _, ok := instance.lookup(lang, key); ok {
		return true
	}
	_, ok := instance.lookup(instance.defaultLang, key)
	return ok
}

func GetSupportedLanguages() []string {
	if instance == nil {
		return []string{"en"}
	}

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	langs := make([]string, 0, len(instance.translations))
	for lang := range instance.translations {
		langs = append(langs, lang)
	}
	return langs
}
