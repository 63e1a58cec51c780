package catalog

import (
	"time"

	"clubmedia/internal/domain/models"

	"github.com/google/uuid"
)

var (
	teamFootball   = models.TeamRef{ID: uuid.MustParse("0b7c6a52-6f0e-4c1e-9d44-1d2f0c9b7a01"), Name: "Fútbol Masculino"}
	teamBasketball = models.TeamRef{ID: uuid.MustParse("0b7c6a52-6f0e-4c1e-9d44-1d2f0c9b7a02"), Name: "Baloncesto Femenino"}
	teamVolleyball = models.TeamRef{ID: uuid.MustParse("0b7c6a52-6f0e-4c1e-9d44-1d2f0c9b7a03"), Name: "Voleibol Mixto"}

	demoUploader = models.UserRef{ID: uuid.MustParse("0b7c6a52-6f0e-4c1e-9d44-1d2f0c9b7aff"), Name: "Coordinación Deportiva"}
)

// DemoPhotos фотографии-примеры для локального запуска, даты отсчитываются от now
func DemoPhotos(now time.Time) []models.Photo {
	day := 24 * time.Hour

	return []models.Photo{
		{
			ID:          uuid.MustParse("7d0c1f5e-2a3b-4c5d-8e9f-000000000001"),
			URI:         "https://picsum.photos/seed/gol/800/600",
			Title:       "Gol de la victoria",
			Description: "El momento exacto del gol que nos dio el campeonato",
			Category:    models.CategoryMatch,
			Featured:    true,
			Team:        teamFootball,
			Uploader:    demoUploader,
			CreatedAt:   now.Add(-1 * day),
			Likes:       45,
			Tags:        []string{"gol", "final", "campeonato"},
		},
		{
			ID:          uuid.MustParse("7d0c1f5e-2a3b-4c5d-8e9f-000000000002"),
			URI:         "https://picsum.photos/seed/entreno/800/600",
			Title:       "Entrenamiento matutino",
			Description: "Sesión de preparación física antes del torneo",
			Category:    models.CategoryTraining,
			Team:        teamBasketball,
			Uploader:    demoUploader,
			CreatedAt:   now.Add(-2 * day),
			Likes:       23,
			Tags:        []string{"entrenamiento", "preparación"},
		},
		{
			ID:          uuid.MustParse("7d0c1f5e-2a3b-4c5d-8e9f-000000000003"),
			URI:         "https://picsum.photos/seed/torneo/800/600",
			Title:       "Torneo interuniversitario",
			Description: "Primera jornada del torneo regional",
			Category:    models.CategoryTournament,
			Featured:    true,
			Team:        teamVolleyball,
			Uploader:    demoUploader,
			CreatedAt:   now.Add(-5 * day),
			Likes:       31,
			Tags:        []string{"torneo", "regional"},
		},
		{
			ID:          uuid.MustParse("7d0c1f5e-2a3b-4c5d-8e9f-000000000004"),
			URI:         "https://picsum.photos/seed/celebracion/800/600",
			Title:       "Celebración del título",
			Description: "Todo el equipo celebrando en el vestuario",
			Category:    models.CategoryCelebration,
			Team:        teamFootball,
			Uploader:    demoUploader,
			CreatedAt:   now.Add(-1*day + time.Hour),
			Likes:       58,
			Tags:        []string{"celebración", "campeones"},
		},
		{
			ID:          uuid.MustParse("7d0c1f5e-2a3b-4c5d-8e9f-000000000005"),
			URI:         "https://picsum.photos/seed/tiros/800/600",
			Title:       "Práctica de tiros libres",
			Description: "Trabajo técnico de lanzamiento",
			Category:    models.CategoryTraining,
			Team:        teamBasketball,
			Uploader:    demoUploader,
			CreatedAt:   now.Add(-7 * day),
			Likes:       12,
			Tags:        []string{"técnica"},
		},
	}
}
