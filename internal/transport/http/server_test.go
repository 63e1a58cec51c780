package http_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpapp "clubmedia/internal/app/http"
	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/jwt"
	"clubmedia/internal/lib/logger/handlers/slogdiscard"
	"clubmedia/internal/services/catalog"
	"clubmedia/internal/services/ingestion"
	uploads "clubmedia/internal/services/upload_service"
	storage "clubmedia/internal/storage/filestorage"
	httprouters "clubmedia/internal/transport/http"
	"clubmedia/internal/transport/http/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

const secret = "test-secret"

type envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type RoutersTestSuite struct {
	suite.Suite
	handler http.Handler
	store   *catalog.Store
	token   string
	user    models.UserRef
}

func (s *RoutersTestSuite) SetupTest() {
	log := slogdiscard.NewDiscardLogger()
	dir := s.T().TempDir()

	files, err := storage.NewLocalFileStorage(dir, "http://localhost/uploads", 1<<20)
	s.Require().NoError(err)

	s.store = catalog.New(log, "es")
	s.Require().NoError(s.store.Merge(catalog.DemoPhotos(time.Now().UTC())))

	sim := ingestion.NewSimulatedTransfer(2, 0)
	sim.ResolveURI = files.URL

	uploadService, err := uploads.NewUploadService(log, uploads.Config{
		Pipeline:   ingestion.Config{MaxAssets: 3, AllowMultiple: true},
		SessionTTL: time.Hour,
	}, files, ingestion.PolicyPermissions{Library: true}, sim, s.store)
	s.Require().NoError(err)

	server := httpapp.New(log, secret, "", "0", dir, "/uploads", 5*time.Second,
		httprouters.NewRouter(log, s.store, uploadService))
	server.BuildRouters()
	s.handler = server.Handler()

	s.user = models.UserRef{ID: uuid.New(), Name: "Valentina"}
	s.token, err = jwt.NewToken(s.user, secret, time.Hour)
	s.Require().NoError(err)
}

func TestRoutersSuite(t *testing.T) {
	suite.Run(t, new(RoutersTestSuite))
}

func (s *RoutersTestSuite) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *RoutersTestSuite) doJSON(method, target string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	return s.do(method, target, body, "application/json")
}

func decode[T any](s *RoutersTestSuite, rec *httptest.ResponseRecorder) envelope[T] {
	var env envelope[T]
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (s *RoutersTestSuite) upload(kind string, files map[string][]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		s.Require().NoError(err)
		_, err = part.Write(data)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	return s.do(http.MethodPost, "/api/v1/ingest/"+kind, &body, mw.FormDataContentType())
}

func pngBytes(s *RoutersTestSuite) []byte {
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 9))))
	return buf.Bytes()
}

func photoTitles(photos []models.Photo) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.Title)
	}
	return out
}

func (s *RoutersTestSuite) TestHealth_NoToken() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
}

func (s *RoutersTestSuite) TestAPI_RequiresToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RoutersTestSuite) TestListPhotos_FilterAndSort() {
	rec := s.do(http.MethodGet, "/api/v1/photos?filter=featured&sort=likes", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	env := decode[dto.PhotoListResponse](s, rec)
	s.Equal([]string{"Gol de la victoria", "Torneo interuniversitario"}, photoTitles(env.Data.Photos))
	s.Equal(2, env.Data.Count)
}

func (s *RoutersTestSuite) TestListPhotos_Search() {
	rec := s.do(http.MethodGet, "/api/v1/photos?q=BALONCESTO&filter=training", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	env := decode[dto.PhotoListResponse](s, rec)
	s.Equal(2, env.Data.Count)
}

func (s *RoutersTestSuite) TestListPhotos_InvalidParams() {
	rec := s.do(http.MethodGet, "/api/v1/photos?filter=unknown", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/photos?sort=random", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestGetPhoto() {
	rec := s.do(http.MethodGet, "/api/v1/photos/7d0c1f5e-2a3b-4c5d-8e9f-000000000001", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Gol de la victoria", decode[models.Photo](s, rec).Data.Title)

	rec = s.do(http.MethodGet, "/api/v1/photos/"+uuid.NewString(), nil, "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/photos/not-a-uuid", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestEditPhoto() {
	target := "/api/v1/photos/7d0c1f5e-2a3b-4c5d-8e9f-000000000002"

	rec := s.do(http.MethodPatch, target,
		strings.NewReader(`{"title":"Entrenamiento nocturno","featured":true,"likes":999}`), "application/json")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	photo := decode[models.Photo](s, rec).Data
	s.Equal("Entrenamiento nocturno", photo.Title)
	s.True(photo.Featured)
	s.Equal(23, photo.Likes)

	rec = s.do(http.MethodPatch, target, strings.NewReader(`{"category":"chess"}`), "application/json")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/photos/"+uuid.NewString(),
		strings.NewReader(`{"title":"x"}`), "application/json")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RoutersTestSuite) TestLikePhoto() {
	rec := s.do(http.MethodPost, "/api/v1/photos/7d0c1f5e-2a3b-4c5d-8e9f-000000000005/like", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(13, decode[models.Photo](s, rec).Data.Likes)
}

func (s *RoutersTestSuite) TestIngest_UploadAndCommit() {
	rec := s.upload("library", map[string][]byte{
		"a.png": pngBytes(s),
		"b.png": pngBytes(s),
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	pending := decode[dto.PendingResponse](s, rec).Data
	s.Require().Equal(2, pending.Count)
	s.Equal(16, pending.Assets[0].Width)
	s.Equal(9, pending.Assets[0].Height)

	rec = s.doJSON(http.MethodPost, "/api/v1/ingest/commit?wait=true", dto.CommitRequest{
		TeamID:   uuid.New(),
		TeamName: "Natación",
		Category: "tournament",
		Tags:     []string{"piscina", " Piscina "},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	committed := decode[dto.PhotoListResponse](s, rec).Data
	s.Require().Equal(2, committed.Count)
	for _, p := range committed.Photos {
		s.Equal(models.CategoryTournament, p.Category)
		s.Equal(s.user, p.Uploader)
		s.Equal([]string{"piscina"}, p.Tags)
		s.Equal(0, p.Likes)
		s.True(strings.HasPrefix(p.URI, "http://localhost/uploads/staging/"))
	}

	s.Equal(7, s.store.Len())

	rec = s.do(http.MethodGet, "/api/v1/ingest/pending", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(0, decode[dto.PendingResponse](s, rec).Data.Count)

	rec = s.do(http.MethodGet, "/api/v1/ingest/progress", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	status := decode[uploads.Status](s, rec).Data
	s.Equal(100, status.Progress)
	s.Equal(2, status.Committed)
}

func (s *RoutersTestSuite) TestIngest_BackgroundCommit() {
	rec := s.upload("library", map[string][]byte{"a.png": pngBytes(s)})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/v1/ingest/commit", dto.CommitRequest{TeamID: uuid.New(), TeamName: "Tenis"})
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())

	s.Eventually(func() bool {
		return s.store.Len() == 6
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *RoutersTestSuite) TestIngest_CommitEmpty() {
	rec := s.doJSON(http.MethodPost, "/api/v1/ingest/commit?wait=true", dto.CommitRequest{TeamID: uuid.New(), TeamName: "Tenis"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(5, s.store.Len())
}

func (s *RoutersTestSuite) TestIngest_CommitValidation() {
	rec := s.doJSON(http.MethodPost, "/api/v1/ingest/commit", map[string]string{"team_name": "Tenis"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/v1/ingest/commit", dto.CommitRequest{TeamID: uuid.New(), TeamName: "Tenis", Category: "chess"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestIngest_Errors() {
	rec := s.upload("camera", map[string][]byte{"a.png": pngBytes(s)})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.upload("drone", map[string][]byte{"a.png": pngBytes(s)})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.upload("library", map[string][]byte{"notes.txt": []byte("hola")})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.upload("library", map[string][]byte{
		"a.png": pngBytes(s),
		"b.png": pngBytes(s),
		"c.png": pngBytes(s),
		"d.png": pngBytes(s),
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *RoutersTestSuite) TestIngest_RemoveAndClear() {
	rec := s.upload("library", map[string][]byte{
		"a.png": pngBytes(s),
		"b.png": pngBytes(s),
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	pending := decode[dto.PendingResponse](s, rec).Data

	rec = s.do(http.MethodDelete, "/api/v1/ingest/pending/"+jsonInt(pending.Assets[0].LocalID), nil, "")
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/ingest/pending", nil, "")
	s.Equal(1, decode[dto.PendingResponse](s, rec).Data.Count)

	rec = s.do(http.MethodDelete, "/api/v1/ingest/pending", nil, "")
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/ingest/pending", nil, "")
	s.Equal(0, decode[dto.PendingResponse](s, rec).Data.Count)

	rec = s.do(http.MethodDelete, "/api/v1/ingest/pending/abc", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestSelection_FeatureAndDelete() {
	rec := s.do(http.MethodGet, "/api/v1/photos?filter=training", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	view := decode[dto.PhotoListResponse](s, rec).Data

	ids := []uuid.UUID{uuid.New()}
	for _, p := range view.Photos {
		ids = append(ids, p.ID)
	}

	rec = s.doJSON(http.MethodPost, "/api/v1/selection", dto.SelectAllRequest{IDs: ids})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(2, decode[dto.SelectionResponse](s, rec).Data.Count)

	rec = s.do(http.MethodPost, "/api/v1/selection/feature", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(2, decode[dto.BulkResult](s, rec).Data.Affected)

	rec = s.do(http.MethodGet, "/api/v1/selection", nil, "")
	s.Equal(0, decode[dto.SelectionResponse](s, rec).Data.Count)

	rec = s.do(http.MethodPost, "/api/v1/selection/toggle/"+view.Photos[0].ID.String(), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(1, decode[dto.SelectionResponse](s, rec).Data.Count)

	rec = s.do(http.MethodPost, "/api/v1/selection/delete", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(1, decode[dto.BulkResult](s, rec).Data.Affected)
	s.Equal(4, s.store.Len())

	rec = s.do(http.MethodDelete, "/api/v1/selection", nil, "")
	s.Equal(http.StatusNoContent, rec.Code)
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
