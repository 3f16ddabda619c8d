package integrations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gregjones/httpcache"
	"github.com/krshsl/staffline/models"
)

// Factory builds a provider from an integration row.
type Factory func(ctx context.Context, in *models.Integration, opts ClientOptions) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      ClientOptions
}

// NewRegistry returns a registry with the built-in providers. With
// CacheResponses set, every client it builds shares one response cache.
func NewRegistry(opts ClientOptions) *Registry {
	if opts.CacheResponses && opts.Cache == nil {
		opts.Cache = httpcache.NewMemoryCache()
	}
	r := &Registry{factories: map[string]Factory{}, opts: opts}
	r.Register(ProviderGusto, newGusto)
	r.Register(ProviderDocuSign, newDocuSign)
	r.Register(ProviderOkta, newOkta)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Build(ctx context.Context, in *models.Integration) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[in.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, in.Provider)
	}
	opts := r.opts
	if in.ID == "" {
		// unsaved configuration
		opts.CacheResponses = false
	}
	opts.CacheScope = in.Provider + "/" + in.ID
	return f(ctx, in, opts)
}

// Payroll builds in as a PayrollProvider.
func (r *Registry) Payroll(ctx context.Context, in *models.Integration) (PayrollProvider, error) {
	p, err := r.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	pp, ok := p.(PayrollProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not run payroll", ErrUnsupportedProvider, in.Provider)
	}
	return pp, nil
}

// Signature builds in as a SignatureProvider.
func (r *Registry) Signature(ctx context.Context, in *models.Integration) (SignatureProvider, error) {
	p, err := r.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(SignatureProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not collect signatures", ErrUnsupportedProvider, in.Provider)
	}
	return sp, nil
}

// Identity builds in as an IdentityProvider.
func (r *Registry) Identity(ctx context.Context, in *models.Integration) (IdentityProvider, error) {
	p, err := r.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	ip, ok := p.(IdentityProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnsupportedProvider, in.Provider)
	}
	return ip, nil
}
