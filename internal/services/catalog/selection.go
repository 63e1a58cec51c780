package catalog

import (
	"bytes"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// ToggleSelection переключает выбор фотографии. Id вне текущего представления игнорируется.
func (s *Store) ToggleSelection(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.view[id]; !ok {
		return
	}
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
		return
	}
	s.selection[id] = struct{}{}
}

// SelectAll заменяет выбор переданными id; id вне текущего представления отбрасываются
func (s *Store) SelectAll(ids []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selection := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.view[id]; ok {
			selection[id] = struct{}{}
		}
	}
	s.selection = selection
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = make(map[uuid.UUID]struct{})
}

// Selection возвращает выбранные id в отсортированном виде
func (s *Store) Selection() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	return ids
}

// DeleteSelected удаляет выбранные фотографии и очищает выбор.
// Возвращает количество удаленных фотографий.
func (s *Store) DeleteSelected() int {
	const op = "catalog.Store.DeleteSelected"

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.selection) == 0 {
		return 0
	}

	removed := s.removeLocked(s.selection)
	s.selection = make(map[uuid.UUID]struct{})

	s.log.Info("selected photos deleted",
		slog.String("op", op),
		slog.Int("removed", removed),
		slog.Int("total", len(s.photos)),
	)

	return removed
}

// ToggleFeaturedOnSelected инвертирует featured у выбранных фотографий и очищает выбор
func (s *Store) ToggleFeaturedOnSelected() int {
	const op = "catalog.Store.ToggleFeaturedOnSelected"

	s.mu.Lock()
	defer s.mu.Unlock()

	toggled := 0
	for id := range s.selection {
		if i, ok := s.index[id]; ok {
			s.photos[i].Featured = !s.photos[i].Featured
			toggled++
		}
	}
	s.selection = make(map[uuid.UUID]struct{})

	if toggled > 0 {
		s.log.Info("featured toggled", slog.String("op", op), slog.Int("toggled", toggled))
	}

	return toggled
}
