package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryTraining    Category = "training"
	CategoryMatch       Category = "match"
	CategoryTournament  Category = "tournament"
	CategoryCelebration Category = "celebration"
)

// Categories перечисляет все допустимые категории в порядке отображения
var Categories = []Category{
	CategoryTraining,
	CategoryMatch,
	CategoryTournament,
	CategoryCelebration,
}

// Valid проверяет, что категория входит в фиксированный набор
func (c Category) Valid() bool {
	switch c {
	case CategoryTraining, CategoryMatch, CategoryTournament, CategoryCelebration:
		return true
	}
	return false
}

// ParseCategory преобразует строку в категорию
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category '%s', must be one of: %v", s, Categories)
	}
	return c, nil
}

// TeamRef ссылка на команду-владельца фотографии
type TeamRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// UserRef ссылка на пользователя, загрузившего фотографию
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Photo представляет опубликованную фотографию в каталоге клуба.
// ID, Team, Uploader и CreatedAt не меняются после коммита.
type Photo struct {
	ID          uuid.UUID `json:"id"`
	URI         string    `json:"uri"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Featured    bool      `json:"featured"`
	Team        TeamRef   `json:"team"`
	Uploader    UserRef   `json:"uploader"`
	CreatedAt   time.Time `json:"created_at"`
	Likes       int       `json:"likes"`
	Tags        []string  `json:"tags"`
	SizeBytes   *int64    `json:"size_bytes,omitempty"`
}

// Clone возвращает копию фотографии, не разделяющую срезы и указатели с оригиналом
func (p Photo) Clone() Photo {
	c := p
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	if p.SizeBytes != nil {
		size := *p.SizeBytes
		c.SizeBytes = &size
	}
	return c
}

// HasTag проверяет наличие тега без учета регистра
func (p Photo) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// PhotoUpdate частичное обновление фотографии.
// Содержит только изменяемые поля: неизменяемые поля во входящем JSON просто отбрасываются.
type PhotoUpdate struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Featured    *bool     `json:"featured,omitempty"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	Category    *Category `json:"category,omitempty"`
}

// Empty сообщает, что обновление не содержит ни одного поля
func (u PhotoUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Featured == nil && u.Tags == nil && u.Category == nil
}

// NormalizeTags обрезает пробелы, отбрасывает пустые и повторяющиеся (без учета регистра) теги,
// сохраняя порядок первого появления
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
