package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/logger/sl"
	"clubmedia/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrQuotaExceeded     = errors.New("asset quota exceeded")
	ErrEmptyPending      = errors.New("no pending assets")
	ErrAlreadyInProgress = errors.New("transfer already in progress")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrUnknownSource     = errors.New("unknown asset source")
	ErrInvalidConfig     = errors.New("invalid pipeline config")
	ErrInvalidCategory   = errors.New("invalid category")
)

type State string

const (
	StateIdle         State = "idle"
	StateTransferring State = "transferring"
)

// Config политика конвейера, фиксируется при создании
type Config struct {
	MaxAssets       int
	AllowMultiple   bool
	DefaultCategory models.Category

	// Discard вызывается для ожидающих изображений, покинувших очередь без коммита
	// (удаление, очистка, замена при AllowMultiple=false). Изображения из снимка идущего переноса
	// передаются только после его завершения и только если перенос не удался.
	Discard func(assets []models.PendingAsset)
}

// Sources источники изображений по типам
type Sources struct {
	Library AssetSource
	Camera  AssetSource
}

// CommitInput данные, которые получают все фотографии одного коммита
type CommitInput struct {
	Team        models.TeamRef
	Uploader    models.UserRef
	Category    models.Category
	Title       string
	Description string
	Tags        []string
}

// Pipeline принимает изображения из источников, проверяет квоту и переносит их в каталог.
// Очередь ожидающих изображений принадлежит только конвейеру.
type Pipeline struct {
	log        *slog.Logger
	cfg        Config
	validate   *validator.Validate
	perms      PermissionSource
	sources    Sources
	transferer Transferer

	now   func() time.Time
	newID func() uuid.UUID

	mu       sync.Mutex
	pending  []models.PendingAsset
	nextID   int64
	state    State
	progress int

	// inflight снимок идущего переноса, deferred покинувшие очередь изображения из него
	inflight map[int64]struct{}
	deferred []models.PendingAsset
}

func New(
	log *slog.Logger,
	cfg Config,
	perms PermissionSource,
	sources Sources,
	transferer Transferer,
) (*Pipeline, error) {
	const op = "ingestion.New"

	if cfg.MaxAssets < 1 {
		return nil, fmt.Errorf("%s: %w: max assets must be positive, got %d", op, ErrInvalidConfig, cfg.MaxAssets)
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = models.CategoryTraining
	}
	if !cfg.DefaultCategory.Valid() {
		return nil, fmt.Errorf("%s: %w: default category %q", op, ErrInvalidConfig, cfg.DefaultCategory)
	}
	if perms == nil || transferer == nil {
		return nil, fmt.Errorf("%s: %w: permission source and transferer are required", op, ErrInvalidConfig)
	}

	return &Pipeline{
		log:        log,
		cfg:        cfg,
		validate:   validator.New(),
		perms:      perms,
		sources:    sources,
		transferer: transferer,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.New,
		state:      StateIdle,
	}, nil
}

// RequestSource запрашивает разрешение на источник и возвращает выбранные пользователем изображения.
// Камера возвращает не больше одного изображения, библиотека - несколько только при AllowMultiple.
func (p *Pipeline) RequestSource(ctx context.Context, kind models.SourceKind) ([]models.RawAsset, error) {
	const op = "ingestion.Pipeline.RequestSource"

	log := p.log.With(
		slog.String("op", op),
		slog.String("source", string(kind)),
	)

	var src AssetSource
	switch kind {
	case models.SourceLibrary:
		src = p.sources.Library
	case models.SourceCamera:
		src = p.sources.Camera
	}
	if src == nil {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownSource, kind)
	}

	granted, err := p.perms.RequestAccess(ctx, kind)
	if err != nil {
		log.Error("failed to request access", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !granted {
		log.Warn("access denied")
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	multiple := p.cfg.AllowMultiple && kind == models.SourceLibrary

	assets, err := src.Pick(ctx, multiple)
	if err != nil {
		log.Error("failed to pick assets", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !multiple && len(assets) > 1 {
		log.Debug("source returned more than one asset, keeping the first", slog.Int("returned", len(assets)))
		assets = assets[:1]
	}

	log.Info("assets picked", slog.Int("count", len(assets)))
	return assets, nil
}

// AddAssets проверяет и добавляет изображения в очередь.
// Вызов либо применяется целиком, либо не меняет очередь.
func (p *Pipeline) AddAssets(raw []models.RawAsset) ([]models.PendingAsset, error) {
	const op = "ingestion.Pipeline.AddAssets"

	log := p.log.With(
		slog.String("op", op),
		slog.Int("incoming", len(raw)),
	)

	if err := p.validateAssets(raw); err != nil {
		log.Warn("asset validation failed", sl.Err(err))
		metrics.AssetBatchesRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(raw) == 0 {
		return nil, nil
	}

	p.mu.Lock()

	if !p.cfg.AllowMultiple {
		discarded := p.releasable(p.pending)
		p.pending = []models.PendingAsset{p.newPending(raw[0])}
		added := cloneAssets(p.pending)
		p.mu.Unlock()

		p.discard(discarded)
		metrics.AssetsAccepted.WithLabelValues("replace").Inc()
		log.Info("pending asset replaced", slog.Int64("local_id", added[0].LocalID))
		return added, nil
	}

	if total := len(p.pending) + len(raw); total > p.cfg.MaxAssets {
		pending := len(p.pending)
		p.mu.Unlock()

		log.Warn("quota exceeded",
			slog.Int("pending", pending),
			slog.Int("max_assets", p.cfg.MaxAssets),
		)
		metrics.AssetBatchesRejected.WithLabelValues("quota").Inc()
		return nil, fmt.Errorf("%s: %w: %d pending + %d incoming > %d", op, ErrQuotaExceeded, pending, len(raw), p.cfg.MaxAssets)
	}

	added := make([]models.PendingAsset, 0, len(raw))
	for _, r := range raw {
		added = append(added, p.newPending(r))
	}
	p.pending = append(p.pending, added...)
	pending := len(p.pending)
	p.mu.Unlock()

	metrics.AssetsAccepted.WithLabelValues("append").Add(float64(len(added)))
	log.Info("assets added", slog.Int("pending", pending))

	return cloneAssets(added), nil
}

// RemoveAsset удаляет изображение из очереди, отсутствующий localID игнорируется
func (p *Pipeline) RemoveAsset(localID int64) {
	p.mu.Lock()
	var removed []models.PendingAsset
	for i, a := range p.pending {
		if a.LocalID == localID {
			removed = p.releasable([]models.PendingAsset{a})
			p.pending = append(p.pending[:i:i], p.pending[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.discard(removed)
}

// Clear очищает очередь
func (p *Pipeline) Clear() {
	p.mu.Lock()
	removed := p.releasable(p.pending)
	p.pending = nil
	p.mu.Unlock()

	p.discard(removed)
}

// Pending возвращает копию очереди в порядке поступления
func (p *Pipeline) Pending() []models.PendingAsset {
	p.mu.Lock()
	defer p.mu.Unlock()

	return cloneAssets(p.pending)
}

func (p *Pipeline) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.progress
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Commit переносит снимок очереди через Transferer и возвращает готовые фотографии.
// При ошибке переноса прогресс сбрасывается в 0, а очередь остается прежней.
// Изображения, добавленные во время переноса, остаются в очереди до следующего коммита.
func (p *Pipeline) Commit(ctx context.Context, in CommitInput, onProgress ProgressFunc) ([]models.Photo, error) {
	const op = "ingestion.Pipeline.Commit"

	log := p.log.With(
		slog.String("op", op),
		slog.String("team_id", in.Team.ID.String()),
		slog.String("uploader_id", in.Uploader.ID.String()),
	)

	category := in.Category
	if category == "" {
		category = p.cfg.DefaultCategory
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidCategory, in.Category)
	}

	p.mu.Lock()
	if p.state == StateTransferring {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyInProgress)
	}
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPending)
	}
	snapshot := cloneAssets(p.pending)
	p.inflight = make(map[int64]struct{}, len(snapshot))
	for _, a := range snapshot {
		p.inflight[a.LocalID] = struct{}{}
	}
	p.state = StateTransferring
	p.progress = 0
	p.mu.Unlock()

	log.Info("transfer started", slog.Int("assets", len(snapshot)))

	reporter := &progressReporter{last: -1, set: p.setProgress, cb: onProgress}
	reporter.report(0)

	start := time.Now()
	results, err := p.transferer.Transfer(ctx, snapshot, reporter.report)
	if err == nil {
		err = checkResults(snapshot, results)
	}
	metrics.TransferDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reporter.close()

		p.mu.Lock()
		p.state = StateIdle
		p.progress = 0
		left := p.deferred
		p.inflight, p.deferred = nil, nil
		p.mu.Unlock()

		// удаленные во время неудачного переноса изображения больше никому не нужны
		p.discard(left)

		log.Error("transfer failed", sl.Err(err))
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransferFailed, err)
	}

	byLocalID := make(map[int64]TransferResult, len(results))
	for _, r := range results {
		byLocalID[r.LocalID] = r
	}

	now := p.now()
	tags := models.NormalizeTags(in.Tags)
	photos := make([]models.Photo, 0, len(snapshot))
	for _, asset := range snapshot {
		res := byLocalID[asset.LocalID]

		size := res.SizeBytes
		if size == nil && asset.SizeBytes != nil {
			s := *asset.SizeBytes
			size = &s
		}

		title := in.Title
		if title == "" {
			title = titleFromURI(asset.SourceURI)
		}

		photos = append(photos, models.Photo{
			ID:          p.newID(),
			URI:         res.URI,
			Title:       title,
			Description: in.Description,
			Category:    category,
			Team:        in.Team,
			Uploader:    in.Uploader,
			CreatedAt:   now,
			Likes:       0,
			Tags:        append([]string(nil), tags...),
			SizeBytes:   size,
		})
	}

	reporter.report(100)
	reporter.close()

	committed := make(map[int64]struct{}, len(snapshot))
	for _, a := range snapshot {
		committed[a.LocalID] = struct{}{}
	}

	p.mu.Lock()
	remaining := p.pending[:0:0]
	for _, a := range p.pending {
		if _, ok := committed[a.LocalID]; !ok {
			remaining = append(remaining, a)
		}
	}
	p.pending = remaining
	p.inflight, p.deferred = nil, nil
	p.state = StateIdle
	p.mu.Unlock()

	metrics.TransfersTotal.WithLabelValues("committed").Inc()
	log.Info("transfer committed", slog.Int("photos", len(photos)), slog.Int("still_pending", len(remaining)))

	return photos, nil
}

func (p *Pipeline) validateAssets(raw []models.RawAsset) error {
	var validationErrors []string
	for i, r := range raw {
		if err := p.validate.Struct(r); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				for _, fe := range ve {
					validationErrors = append(validationErrors,
						fmt.Sprintf("asset %d: field %s failed on '%s'", i, fe.Field(), fe.Tag()))
				}
				continue
			}
			validationErrors = append(validationErrors, fmt.Sprintf("asset %d: %v", i, err))
		}
	}

	if len(validationErrors) > 0 {
		return &AssetValidationError{Errors: validationErrors}
	}
	return nil
}

// newPending вызывается под p.mu
func (p *Pipeline) newPending(raw models.RawAsset) models.PendingAsset {
	p.nextID++
	return models.NewPendingAsset(p.nextID, raw)
}

func (p *Pipeline) setProgress(pct int) {
	p.mu.Lock()
	p.progress = pct
	p.mu.Unlock()
}

// releasable вызывается под p.mu: изображения из снимка идущего переноса откладываются,
// остальные возвращаются для немедленного освобождения
func (p *Pipeline) releasable(assets []models.PendingAsset) []models.PendingAsset {
	if len(p.inflight) == 0 {
		return assets
	}

	out := make([]models.PendingAsset, 0, len(assets))
	for _, a := range assets {
		if _, ok := p.inflight[a.LocalID]; ok {
			p.deferred = append(p.deferred, a)
			continue
		}
		out = append(out, a)
	}
	return out
}

func (p *Pipeline) discard(assets []models.PendingAsset) {
	if len(assets) == 0 || p.cfg.Discard == nil {
		return
	}
	p.cfg.Discard(cloneAssets(assets))
}

func checkResults(snapshot []models.PendingAsset, results []TransferResult) error {
	if len(results) != len(snapshot) {
		return fmt.Errorf("transferer returned %d results for %d assets", len(results), len(snapshot))
	}

	want := make(map[int64]struct{}, len(snapshot))
	for _, a := range snapshot {
		want[a.LocalID] = struct{}{}
	}
	for _, r := range results {
		if _, ok := want[r.LocalID]; !ok {
			return fmt.Errorf("transferer returned unknown or repeated asset %d", r.LocalID)
		}
		delete(want, r.LocalID)
	}

	return nil
}

func titleFromURI(uri string) string {
	base := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func cloneAssets(assets []models.PendingAsset) []models.PendingAsset {
	if assets == nil {
		return nil
	}
	out := make([]models.PendingAsset, len(assets))
	for i, a := range assets {
		out[i] = models.NewPendingAsset(a.LocalID, models.RawAsset{
			URI:       a.SourceURI,
			Width:     a.Width,
			Height:    a.Height,
			SizeBytes: a.SizeBytes,
		})
	}
	return out
}

// AssetValidationError перечисляет все нарушения в пакете изображений
type AssetValidationError struct {
	Errors []string
}

func (e *AssetValidationError) Error() string {
	return fmt.Sprintf("asset validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *AssetValidationError) Unwrap() error {
	return ErrInvalidAsset
}
