package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/logger/sl"
	"clubmedia/internal/middleware"
	"clubmedia/internal/services/catalog"
	"clubmedia/internal/services/ingestion"
	uploads "clubmedia/internal/services/upload_service"
	"clubmedia/internal/storage"
	"clubmedia/internal/transport/http/dto"
	"clubmedia/internal/transport/http/dto/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CatalogService interface {
	Query(q catalog.Query) ([]models.Photo, error)
	Get(id uuid.UUID) (models.Photo, error)
	EditPhoto(id uuid.UUID, upd models.PhotoUpdate) (models.Photo, error)
	Like(id uuid.UUID) (models.Photo, error)
	ToggleSelection(id uuid.UUID)
	SelectAll(ids []uuid.UUID)
	ClearSelection()
	Selection() []uuid.UUID
	DeleteSelected() int
	ToggleFeaturedOnSelected() int
}

type UploadService interface {
	Stage(ctx context.Context, user models.UserRef, kind models.SourceKind, files []*multipart.FileHeader) ([]models.PendingAsset, error)
	Pending(user models.UserRef) ([]models.PendingAsset, error)
	Remove(user models.UserRef, localID int64) error
	Clear(user models.UserRef) error
	Commit(ctx context.Context, user models.UserRef, in ingestion.CommitInput) ([]models.Photo, error)
	StartCommit(user models.UserRef, in ingestion.CommitInput) error
	Status(user models.UserRef) (uploads.Status, error)
}

type Routers struct {
	log            *slog.Logger
	CatalogService CatalogService
	UploadService  UploadService
}

func NewRouter(log *slog.Logger, catalogService CatalogService, uploadService UploadService) *Routers {
	return &Routers{
		log:            log,
		CatalogService: catalogService,
		UploadService:  uploadService,
	}
}

// UploadAssets godoc
// @Summary Добавление изображений в очередь загрузки
// @Description Принимает файлы из источника (library или camera) и добавляет их в очередь пользователя.
// @Tags ingest
// @Accept multipart/form-data
// @Produce json
// @Param kind path string true "Источник" Enums(library, camera)
// @Param files formData file true "Изображения"
// @Success 200 {object} response.Response{data=dto.PendingResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/ingest/{kind} [post]
func (r *Routers) UploadAssets(c echo.Context) error {
	const op = "http.routers.UploadAssets"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	kind, err := models.ParseSourceKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	form, err := c.MultipartForm()
	if err != nil {
		log.Warn("failed to parse multipart form", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails("multipart form with files expected"))
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["files[]"]
	}

	pending, err := r.UploadService.Stage(c.Request().Context(), user, kind, files)
	if err != nil {
		return r.ingestError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewPendingResponse(pending)))
}

func (r *Routers) ListPending(c echo.Context) error {
	const op = "http.routers.ListPending"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	pending, err := r.UploadService.Pending(user)
	if err != nil {
		return r.ingestError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewPendingResponse(pending)))
}

func (r *Routers) RemovePending(c echo.Context) error {
	const op = "http.routers.RemovePending"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	localID, err := strconv.ParseInt(c.Param("local_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidID)
	}

	if err := r.UploadService.Remove(user, localID); err != nil {
		return r.ingestError(c, log, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (r *Routers) ClearPending(c echo.Context) error {
	const op = "http.routers.ClearPending"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	if err := r.UploadService.Clear(user); err != nil {
		return r.ingestError(c, log, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// Commit godoc
// @Summary Публикация очереди загрузки
// @Description Запускает перенос очереди в фоне (202). С параметром wait=true ждет окончания и возвращает фотографии (201).
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body dto.CommitRequest true "Команда и общие поля фотографий"
// @Param wait query bool false "Дождаться окончания переноса"
// @Success 201 {object} response.Response{data=dto.PhotoListResponse}
// @Success 202 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/ingest/commit [post]
func (r *Routers) Commit(c echo.Context) error {
	const op = "http.routers.Commit"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	var req dto.CommitRequest

	if err := c.Bind(&req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		photos, err := r.UploadService.Commit(c.Request().Context(), user, req.ToDomain())
		if err != nil {
			return r.ingestError(c, log, err)
		}

		log.Info("photos committed", slog.String("user_id", user.ID.String()), slog.Int("photos", len(photos)))
		return c.JSON(http.StatusCreated, response.SuccessResponse(dto.NewPhotoListResponse(photos)))
	}

	if err := r.UploadService.StartCommit(user, req.ToDomain()); err != nil {
		return r.ingestError(c, log, err)
	}

	return c.JSON(http.StatusAccepted, response.Response{
		Status:  "success",
		Message: "transfer started",
	})
}

func (r *Routers) Progress(c echo.Context) error {
	const op = "http.routers.Progress"

	log := r.log.With(
		slog.String("op", op),
	)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
	}

	status, err := r.UploadService.Status(user)
	if err != nil {
		return r.ingestError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(status))
}

// ListPhotos godoc
// @Summary Список фотографий каталога
// @Description Фильтр (all, featured или категория) и поиск объединяются через И, затем применяется сортировка.
// @Tags photos
// @Produce json
// @Param filter query string false "Фильтр" default(all)
// @Param q query string false "Поиск по названию, описанию, команде и тегам"
// @Param sort query string false "Сортировка" Enums(date, likes, title, team) default(date)
// @Success 200 {object} response.Response{data=dto.PhotoListResponse}
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/photos [get]
func (r *Routers) ListPhotos(c echo.Context) error {
	const op = "http.routers.ListPhotos"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.PhotoListQuery

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	photos, err := r.CatalogService.Query(req.ToDomain())
	if err != nil {
		return r.catalogError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewPhotoListResponse(photos)))
}

func (r *Routers) GetPhoto(c echo.Context) error {
	const op = "http.routers.GetPhoto"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidID)
	}

	photo, err := r.CatalogService.Get(id)
	if err != nil {
		return r.catalogError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(photo))
}

// EditPhoto godoc
// @Summary Частичное обновление фотографии
// @Description Меняет только title, description, featured, tags и category. Остальные поля игнорируются.
// @Tags photos
// @Accept json
// @Produce json
// @Param id path string true "UUID фотографии" format(uuid)
// @Param request body models.PhotoUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Photo}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/photos/{id} [patch]
func (r *Routers) EditPhoto(c echo.Context) error {
	const op = "http.routers.EditPhoto"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidID)
	}

	var upd models.PhotoUpdate

	if err := c.Bind(&upd); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(upd); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	photo, err := r.CatalogService.EditPhoto(id, upd)
	if err != nil {
		return r.catalogError(c, log, err)
	}

	log.Info("photo updated", slog.String("photo_id", id.String()))

	return c.JSON(http.StatusOK, response.SuccessResponse(photo))
}

func (r *Routers) LikePhoto(c echo.Context) error {
	const op = "http.routers.LikePhoto"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidID)
	}

	photo, err := r.CatalogService.Like(id)
	if err != nil {
		return r.catalogError(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(photo))
}

func (r *Routers) ToggleSelection(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidID)
	}

	r.CatalogService.ToggleSelection(id)

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewSelectionResponse(r.CatalogService.Selection())))
}

func (r *Routers) SelectAll(c echo.Context) error {
	const op = "http.routers.SelectAll"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.SelectAllRequest

	if err := c.Bind(&req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	r.CatalogService.SelectAll(req.IDs)

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewSelectionResponse(r.CatalogService.Selection())))
}

func (r *Routers) ClearSelection(c echo.Context) error {
	r.CatalogService.ClearSelection()

	return c.NoContent(http.StatusNoContent)
}

func (r *Routers) GetSelection(c echo.Context) error {
	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewSelectionResponse(r.CatalogService.Selection())))
}

func (r *Routers) DeleteSelected(c echo.Context) error {
	const op = "http.routers.DeleteSelected"

	removed := r.CatalogService.DeleteSelected()

	r.log.Info("selection deleted", slog.String("op", op), slog.Int("removed", removed))

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.BulkResult{Affected: removed}))
}

func (r *Routers) FeatureSelected(c echo.Context) error {
	toggled := r.CatalogService.ToggleFeaturedOnSelected()

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.BulkResult{Affected: toggled}))
}

func (r *Routers) ingestError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, ingestion.ErrPermissionDenied):
		log.Warn("permission denied", sl.Err(err))
		return c.JSON(http.StatusForbidden, response.ErrPermissionDenied)
	case errors.Is(err, ingestion.ErrQuotaExceeded):
		return c.JSON(http.StatusUnprocessableEntity, response.ErrQuotaExceeded.WithDetails(err.Error()))
	case errors.Is(err, ingestion.ErrInvalidAsset),
		errors.Is(err, storage.ErrInvalidFileType):
		return c.JSON(http.StatusBadRequest, response.ErrInvalidAsset.WithDetails(err.Error()))
	case errors.Is(err, storage.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	case errors.Is(err, uploads.ErrNoFiles),
		errors.Is(err, ingestion.ErrUnknownSource),
		errors.Is(err, ingestion.ErrInvalidCategory):
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	case errors.Is(err, ingestion.ErrEmptyPending):
		return c.JSON(http.StatusConflict, response.ErrEmptyPending)
	case errors.Is(err, ingestion.ErrAlreadyInProgress):
		return c.JSON(http.StatusConflict, response.ErrTransferInProgress)
	case errors.Is(err, ingestion.ErrTransferFailed):
		log.Error("transfer failed", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrTransferFailed.WithDetails(err.Error()))
	case errors.Is(err, catalog.ErrDuplicateID):
		log.Error("failed to merge photos", sl.Err(err))
		return c.JSON(http.StatusConflict, response.ErrDuplicatePhoto.WithDetails(err.Error()))
	}

	log.Error("ingestion request failed", sl.Err(err))
	return c.JSON(http.StatusInternalServerError, response.ErrInternal)
}

func (r *Routers) catalogError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return c.JSON(http.StatusNotFound, response.ErrPhotoNotFound)
	case errors.Is(err, catalog.ErrInvalidFilter),
		errors.Is(err, catalog.ErrInvalidSort),
		errors.Is(err, catalog.ErrInvalidCategory),
		errors.Is(err, catalog.ErrInvalidUpdate):
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	case errors.Is(err, catalog.ErrDuplicateID):
		return c.JSON(http.StatusConflict, response.ErrDuplicatePhoto.WithDetails(err.Error()))
	}

	log.Error("catalog request failed", sl.Err(err))
	return c.JSON(http.StatusInternalServerError, response.ErrInternal)
}
