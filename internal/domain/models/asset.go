package models

import (
	"fmt"
	"strings"
)

// SourceKind источник, из которого пользователь получает изображения
type SourceKind string

const (
	SourceLibrary SourceKind = "library"
	SourceCamera  SourceKind = "camera"
)

// ParseSourceKind преобразует строку в тип источника
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SourceLibrary, SourceCamera:
		return k, nil
	}
	return "", fmt.Errorf("unknown source '%s', must be one of: [%s %s]", s, SourceLibrary, SourceCamera)
}

// RawAsset изображение в том виде, в каком его вернул источник
type RawAsset struct {
	URI       string `json:"uri" validate:"required"`
	Width     int    `json:"width" validate:"min=0"`
	Height    int    `json:"height" validate:"min=0"`
	SizeBytes *int64 `json:"size_bytes,omitempty" validate:"omitempty,min=0"`
}

// PendingAsset кандидат на загрузку, живущий в конвейере до коммита.
// LocalID уникален только в пределах одного конвейера и не переносится в Photo.ID.
type PendingAsset struct {
	LocalID   int64  `json:"local_id"`
	SourceURI string `json:"source_uri"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes *int64 `json:"size_bytes,omitempty"`
}

// NewPendingAsset создает PendingAsset из RawAsset с заданным локальным идентификатором
func NewPendingAsset(localID int64, raw RawAsset) PendingAsset {
	asset := PendingAsset{
		LocalID:   localID,
		SourceURI: raw.URI,
		Width:     raw.Width,
		Height:    raw.Height,
	}
	if raw.SizeBytes != nil {
		size := *raw.SizeBytes
		asset.SizeBytes = &size
	}
	return asset
}
