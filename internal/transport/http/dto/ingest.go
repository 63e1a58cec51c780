package dto

import (
	"clubmedia/internal/domain/models"
	"clubmedia/internal/services/ingestion"

	"github.com/google/uuid"
)

// CommitRequest данные, общие для всех фотографий одного коммита
type CommitRequest struct {
	TeamID      uuid.UUID `json:"team_id" validate:"required"`
	TeamName    string    `json:"team_name" validate:"required,max=100"`
	Category    string    `json:"category" validate:"omitempty,oneof=training match tournament celebration"` // Пусто - категория по умолчанию
	Title       string    `json:"title" validate:"max=200"`                                                   // Пусто - имя файла
	Description string    `json:"description" validate:"max=2000"`
	Tags        []string  `json:"tags" validate:"max=20,dive,max=50"`
}

// ToDomain преобразует запрос в CommitInput; загрузившего пользователя подставляет сервис
func (r CommitRequest) ToDomain() ingestion.CommitInput {
	return ingestion.CommitInput{
		Team:        models.TeamRef{ID: r.TeamID, Name: r.TeamName},
		Category:    models.Category(r.Category),
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
	}
}

// PendingResponse текущая очередь загрузки
type PendingResponse struct {
	Assets []models.PendingAsset `json:"assets"`
	Count  int                   `json:"count"`
}

func NewPendingResponse(assets []models.PendingAsset) PendingResponse {
	if assets == nil {
		assets = []models.PendingAsset{}
	}
	return PendingResponse{Assets: assets, Count: len(assets)}
}
