package catalog

import (
	"fmt"
	"strings"

	"clubmedia/internal/domain/models"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterFeatured Filter = "featured"
)

type SortKey string

const (
	SortDate  SortKey = "date"
	SortLikes SortKey = "likes"
	SortTitle SortKey = "title"
	SortTeam  SortKey = "team"
)

// Query параметры выборки. Пустые Filter и Sort означают all и date.
type Query struct {
	Filter Filter
	Search string
	Sort   SortKey
}

func (q Query) normalize() (Filter, SortKey, error) {
	filter := Filter(strings.ToLower(strings.TrimSpace(string(q.Filter))))
	if filter == "" {
		filter = FilterAll
	}
	if filter != FilterAll && filter != FilterFeatured && !models.Category(filter).Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFilter, q.Filter)
	}

	key := SortKey(strings.ToLower(strings.TrimSpace(string(q.Sort))))
	switch key {
	case "":
		key = SortDate
	case SortDate, SortLikes, SortTitle, SortTeam:
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSort, q.Sort)
	}

	return filter, key, nil
}

// matches: featured не зависит от категории, категория не зависит от featured
func (f Filter) matches(p models.Photo) bool {
	switch f {
	case FilterAll:
		return true
	case FilterFeatured:
		return p.Featured
	}
	return p.Category == models.Category(f)
}

func normalizeSearch(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func matchesSearch(p models.Photo, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.Team.Name), needle) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// less строит функцию сравнения для sort.SliceStable, равные элементы сохраняют порядок вставки
func (s *Store) less(photos []models.Photo, key SortKey) func(i, j int) bool {
	switch key {
	case SortLikes:
		return func(i, j int) bool { return photos[i].Likes > photos[j].Likes }
	case SortTitle:
		return func(i, j int) bool {
			return s.collator.CompareString(photos[i].Title, photos[j].Title) < 0
		}
	case SortTeam:
		return func(i, j int) bool {
			return s.collator.CompareString(photos[i].Team.Name, photos[j].Team.Name) < 0
		}
	}
	return func(i, j int) bool { return photos[i].CreatedAt.After(photos[j].CreatedAt) }
}
