package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrDuplicateID     = errors.New("duplicate photo id")
	ErrNotFound        = errors.New("photo not found")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidSort     = errors.New("invalid sort key")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidUpdate   = errors.New("invalid photo update")
)

// Store владеет коллекцией фотографий и набором выбранных фотографий.
// Порядок вставки сохраняется и используется для стабильной сортировки.
type Store struct {
	log      *slog.Logger
	validate *validator.Validate
	collator *collate.Collator

	mu        sync.Mutex
	photos    []models.Photo
	index     map[uuid.UUID]int
	view      map[uuid.UUID]struct{}
	selection map[uuid.UUID]struct{}
}

// New создает пустой каталог. locale задает правила сравнения строк при сортировке по названию и команде.
func New(log *slog.Logger, locale string) *Store {
	tag, err := language.Parse(locale)
	if err != nil {
		log.Warn("unknown locale, falling back to und", slog.String("locale", locale))
		tag = language.Und
	}

	return &Store{
		log:       log,
		validate:  validator.New(),
		collator:  collate.New(tag, collate.IgnoreCase),
		index:     make(map[uuid.UUID]int),
		view:      make(map[uuid.UUID]struct{}),
		selection: make(map[uuid.UUID]struct{}),
	}
}

// Merge добавляет новые фотографии. Если хотя бы один id уже есть в каталоге
// или повторяется в пакете, не добавляется ничего.
func (s *Store) Merge(photos []models.Photo) error {
	const op = "catalog.Store.Merge"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("incoming", len(photos)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(photos))
	for _, p := range photos {
		if _, ok := s.index[p.ID]; ok {
			log.Warn("photo already exists", slog.String("photo_id", p.ID.String()))
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicateID, p.ID)
		}
		if _, ok := seen[p.ID]; ok {
			log.Warn("photo repeated in batch", slog.String("photo_id", p.ID.String()))
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	for _, p := range photos {
		s.index[p.ID] = len(s.photos)
		s.photos = append(s.photos, p.Clone())
	}
	metrics.CatalogPhotos.Set(float64(len(s.photos)))

	log.Info("photos merged", slog.Int("total", len(s.photos)))
	return nil
}

// Query возвращает снимок каталога: фильтр и поиск объединяются через И, затем применяется сортировка.
// Результат становится текущим представлением, выбор сужается до фотографий из него.
func (s *Store) Query(q Query) ([]models.Photo, error) {
	const op = "catalog.Store.Query"

	filter, sortKey, err := q.normalize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	search := normalizeSearch(q.Search)

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		if filter.matches(p) && matchesSearch(p, search) {
			result = append(result, p.Clone())
		}
	}

	sort.SliceStable(result, s.less(result, sortKey))

	s.view = make(map[uuid.UUID]struct{}, len(result))
	for _, p := range result {
		s.view[p.ID] = struct{}{}
	}
	for id := range s.selection {
		if _, ok := s.view[id]; !ok {
			delete(s.selection, id)
		}
	}

	s.log.Debug("query",
		slog.String("op", op),
		slog.String("filter", string(filter)),
		slog.String("sort", string(sortKey)),
		slog.Int("found", len(result)),
	)

	return result, nil
}

// Get возвращает копию фотографии по id
func (s *Store) Get(id uuid.UUID) (models.Photo, error) {
	const op = "catalog.Store.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return models.Photo{}, fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}
	return s.photos[i].Clone(), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.photos)
}

// EditPhoto применяет частичное обновление к изменяемым полям фотографии
func (s *Store) EditPhoto(id uuid.UUID, upd models.PhotoUpdate) (models.Photo, error) {
	const op = "catalog.Store.EditPhoto"

	log := s.log.With(
		slog.String("op", op),
		slog.String("photo_id", id.String()),
	)

	if upd.Category != nil && !upd.Category.Valid() {
		log.Warn("invalid category", slog.String("category", string(*upd.Category)))
		return models.Photo{}, fmt.Errorf("%s: %w: %q", op, ErrInvalidCategory, *upd.Category)
	}
	if err := s.validate.Struct(upd); err != nil {
		log.Warn("invalid update", slog.Any("err", err))
		return models.Photo{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidUpdate, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return models.Photo{}, fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}

	p := &s.photos[i]
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Featured != nil {
		p.Featured = *upd.Featured
	}
	if upd.Tags != nil {
		p.Tags = models.NormalizeTags(*upd.Tags)
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}

	log.Info("photo updated")
	return p.Clone(), nil
}

// Like увеличивает счетчик отметок «нравится»
func (s *Store) Like(id uuid.UUID) (models.Photo, error) {
	const op = "catalog.Store.Like"

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return models.Photo{}, fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}
	s.photos[i].Likes++

	return s.photos[i].Clone(), nil
}

// removeLocked удаляет фотографии и перестраивает индекс, вызывается под s.mu
func (s *Store) removeLocked(ids map[uuid.UUID]struct{}) int {
	kept := s.photos[:0]
	removed := 0
	for _, p := range s.photos {
		if _, ok := ids[p.ID]; ok {
			delete(s.index, p.ID)
			delete(s.view, p.ID)
			delete(s.selection, p.ID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	// обнуляем хвост, чтобы не держать ссылки на удаленные фотографии
	for i := len(kept); i < len(s.photos); i++ {
		s.photos[i] = models.Photo{}
	}
	s.photos = kept

	for i, p := range s.photos {
		s.index[p.ID] = i
	}
	metrics.CatalogPhotos.Set(float64(len(s.photos)))

	return removed
}
