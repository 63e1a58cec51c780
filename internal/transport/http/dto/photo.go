package dto

import (
	"clubmedia/internal/domain/models"
	"clubmedia/internal/services/catalog"
)

type PhotoListQuery struct {
	Filter string `query:"filter"`
	Search string `query:"q" validate:"max=200"`
	Sort   string `query:"sort"`
}

func (q PhotoListQuery) ToDomain() catalog.Query {
	return catalog.Query{
		Filter: catalog.Filter(q.Filter),
		Search: q.Search,
		Sort:   catalog.SortKey(q.Sort),
	}
}

type PhotoListResponse struct {
	Photos []models.Photo `json:"photos"`
	Count  int            `json:"count"`
}

func NewPhotoListResponse(photos []models.Photo) PhotoListResponse {
	if photos == nil {
		photos = []models.Photo{}
	}
	return PhotoListResponse{Photos: photos, Count: len(photos)}
}
