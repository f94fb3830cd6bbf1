package config

import (
	"os"
	"strings"

	"github.com/jonwraymond/notifyops/condition"
)

// Env is a condition.ConfigSource over environment variables.
//
// A dotted key maps to an upper-case variable name with dots and dashes
// replaced by underscores, after Prefix: with Prefix "NOTIFY_" the key
// "mail.smtp.host" reads NOTIFY_MAIL_SMTP_HOST.
type Env struct {
	// Prefix is prepended to every variable name.
	Prefix string

	// LookupEnv reads a variable.
	// Default: os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// EnvName returns the variable that holds key.
func (e Env) EnvName(key string) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	return e.Prefix + strings.ToUpper(name)
}

// Has implements condition.ConfigSource.
func (e Env) Has(key string) bool {
	_, ok := e.Lookup(key)
	return ok
}

// Lookup implements condition.ConfigSource.
func (e Env) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(e.EnvName(key))
}

type layered []condition.ConfigSource

// Layered returns a source that consults sources in order; the first source
// holding a key supplies its value. Nil sources are skipped.
func Layered(sources ...condition.ConfigSource) condition.ConfigSource {
	out := make(layered, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l layered) Has(key string) bool {
	for _, s := range l {
		if s.Has(key) {
			return true
		}
	}
	return false
}

func (l layered) Lookup(key string) (string, bool) {
	for _, s := range l {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
