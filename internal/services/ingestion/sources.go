package ingestion

import (
	"context"
	"sync"
	"time"

	"clubmedia/internal/domain/models"

	"github.com/patrickmn/go-cache"
)

// PermissionSource спрашивает у окружения доступ к источнику изображений
type PermissionSource interface {
	RequestAccess(ctx context.Context, kind models.SourceKind) (bool, error)
}

// AssetSource возвращает изображения, выбранные пользователем.
// При multiple=false источник должен вернуть не больше одного изображения.
type AssetSource interface {
	Pick(ctx context.Context, multiple bool) ([]models.RawAsset, error)
}

// PolicyPermissions выдает доступ к источникам, включенным в конфигурации
type PolicyPermissions struct {
	Library bool
	Camera  bool
}

func (p PolicyPermissions) RequestAccess(ctx context.Context, kind models.SourceKind) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch kind {
	case models.SourceLibrary:
		return p.Library, nil
	case models.SourceCamera:
		return p.Camera, nil
	}
	return false, nil
}

// CachedPermissions запоминает выданные разрешения на ttl.
// Отказы не кэшируются, чтобы следующий запрос увидел выданный позже доступ.
type CachedPermissions struct {
	next  PermissionSource
	cache *cache.Cache
}

func NewCachedPermissions(next PermissionSource, ttl time.Duration) *CachedPermissions {
	return &CachedPermissions{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedPermissions) RequestAccess(ctx context.Context, kind models.SourceKind) (bool, error) {
	if _, ok := c.cache.Get(string(kind)); ok {
		return true, nil
	}

	granted, err := c.next.RequestAccess(ctx, kind)
	if err != nil {
		return false, err
	}
	if granted {
		c.cache.SetDefault(string(kind), struct{}{})
	}

	return granted, nil
}

// Revoke забывает выданное разрешение
func (c *CachedPermissions) Revoke(kind models.SourceKind) {
	c.cache.Delete(string(kind))
}

// InboxSource источник, в который изображения предварительно складываются (например, загруженные по HTTP).
// Pick забирает все накопленные изображения.
type InboxSource struct {
	mu    sync.Mutex
	queue []models.RawAsset
}

func NewInboxSource() *InboxSource {
	return &InboxSource{}
}

func (s *InboxSource) Stage(assets ...models.RawAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, assets...)
}

func (s *InboxSource) Pick(ctx context.Context, _ bool) ([]models.RawAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	picked := s.queue
	s.queue = nil

	return picked, nil
}

func (s *InboxSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}
