package dto

import "github.com/google/uuid"

type SelectAllRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required"`
}

type SelectionResponse struct {
	IDs   []uuid.UUID `json:"ids"`
	Count int         `json:"count"`
}

func NewSelectionResponse(ids []uuid.UUID) SelectionResponse {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return SelectionResponse{IDs: ids, Count: len(ids)}
}

// BulkResult количество фотографий, затронутых групповой операцией
type BulkResult struct {
	Affected int `json:"affected"`
}
