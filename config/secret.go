package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/jonwraymond/notifyops/cleanup"
)

// SecretProvider resolves secret references.
//
// Contract:
//   - Safe for concurrent use.
//   - Must never log secret values.
//   - Close releases clients or handles held by the provider.
type SecretProvider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

const secretRefPrefix = "secretref:"

var inlineSecretRef = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// ParseSecretRef splits a whole-value reference of the form
// secretref:<provider>:<ref>.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, secretRefPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// SecretResolver expands env references and resolves secret references.
// Registered providers are tracked in a cleanup.Registry and closed by
// Close, most recently registered first.
type SecretResolver struct {
	mu        sync.RWMutex
	providers map[string]SecretProvider
	strict    bool
	resources *cleanup.Registry
}

// NewSecretResolver returns a resolver. When strict is true an empty
// resolved secret is an error.
func NewSecretResolver(strict bool, providers ...SecretProvider) *SecretResolver {
	r := &SecretResolver{
		providers: make(map[string]SecretProvider),
		strict:    strict,
		resources: cleanup.NewRegistry(),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *SecretResolver) Register(p SecretProvider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
	r.resources.Track(p)
}

// ResolveValue expands env references in value, then resolves a whole-value
// secret reference or any inline ones.
func (r *SecretResolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolve(ctx, provider, ref)
	}

	matches := inlineSecretRef.FindAllStringSubmatchIndex(expanded, -1)
	out := expanded
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		secret, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + secret + out[m[1]:]
	}
	return out, nil
}

// ResolveMap resolves each value of input.
func (r *SecretResolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// Close closes every registered provider. Failures are reported together
// as a *failure.Aggregate.
func (r *SecretResolver) Close() error {
	return r.resources.Cleanup()
}

func (r *SecretResolver) resolve(ctx context.Context, name, ref string) (string, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySecret, name)
	}
	return v, nil
}

// EnvSecrets resolves references to environment variables.
type EnvSecrets struct{}

// Name returns "env".
func (EnvSecrets) Name() string { return "env" }

// Resolve returns the value of the variable named ref.
func (EnvSecrets) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %q", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvSecrets) Close() error { return nil }

// FileSecrets resolves references to files below Dir, as mounted by
// container orchestrators. Trailing newlines are trimmed.
type FileSecrets struct {
	Dir string
}

// Name returns "file".
func (FileSecrets) Name() string { return "file" }

// Resolve reads Dir/ref. References escaping Dir are rejected.
func (f FileSecrets) Resolve(_ context.Context, ref string) (string, error) {
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: file %q", ErrSecretNotFound, ref)
	}
	data, err := os.ReadFile(filepath.Join(f.Dir, ref))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecretNotFound, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close is a no-op.
func (FileSecrets) Close() error { return nil }
