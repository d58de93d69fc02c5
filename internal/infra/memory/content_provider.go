package memory

import (
	"context"

	"contest-service/internal/domain"
)

// StaticContentProvider serves a fixed item pool per game type and language.
type StaticContentProvider struct {
	pools map[domain.GameType]map[string][]domain.ContentItem
}

func NewStaticContentProvider() *StaticContentProvider {
	return &StaticContentProvider{pools: make(map[domain.GameType]map[string][]domain.ContentItem)}
}

// Add registers items for a game type and language. Not safe for use after
// the provider is serving requests.
func (p *StaticContentProvider) Add(gameType domain.GameType, language string, items ...domain.ContentItem) *StaticContentProvider {
	byLang, ok := p.pools[gameType]
	if !ok {
		byLang = make(map[string][]domain.ContentItem)
		p.pools[gameType] = byLang
	}
	byLang[language] = append(byLang[language], items...)
	return p
}

func (p *StaticContentProvider) FetchContent(_ context.Context, req domain.ContentRequest) ([]domain.ContentItem, error) {
	items := p.pools[req.GameType][req.Segment.Language]
	return append([]domain.ContentItem(nil), items...), nil
}
