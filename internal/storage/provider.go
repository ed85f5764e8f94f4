package storage

import (
	"context"
	"time"

	"github.com/example/yinsee/internal/credit"
	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

// ProviderStore holds the single provider record of a profile.
type ProviderStore struct {
	kv  *kv.Store
	Now func() time.Time
}

func NewProviderStore(s *kv.Store) *ProviderStore { return &ProviderStore{kv: s} }

func (p *ProviderStore) Get(ctx context.Context) (models.Provider, bool) {
	prov, ok := kv.Lookup[models.Provider](ctx, p.kv, KeyProvider)
	if !ok || !prov.Normalize() {
		return models.Provider{}, false
	}
	return prov, true
}

func (p *ProviderStore) Set(ctx context.Context, prov models.Provider) {
	p.kv.Write(ctx, KeyProvider, prov)
}

func (p *ProviderStore) Stage(b *kv.Batch, prov models.Provider) {
	b.Put(KeyProvider, prov)
}

// Create writes a fresh provider with the starting balance.
func (p *ProviderStore) Create(ctx context.Context) models.Provider {
	prov := models.Provider{
		ID:            models.NewProviderID(),
		WalletCredits: credit.StartingCredits,
		CreatedAt:     clock(p.Now),
	}
	p.Set(ctx, prov)
	return prov
}

func (p *ProviderStore) Delete(ctx context.Context) { p.kv.Remove(ctx, KeyProvider) }
