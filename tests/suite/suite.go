package suite

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"clubmedia/internal/app"
	"clubmedia/internal/config"
	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/jwt"
	"clubmedia/internal/lib/logger/handlers/slogdiscard"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Suite struct {
	*testing.T
	Cfg     *config.Config
	App     *app.App
	Handler http.Handler
	User    models.UserRef
	Token   string
}

// New собирает приложение по тестовой конфигурации: файлы пишутся во временный каталог,
// перенос выполняется без задержек
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	t.Parallel()

	cfg := config.MustLoadPath(configPath())
	cfg.FileStorage.BaseDir = t.TempDir()
	cfg.Ingestion.TransferStepDelay = 0

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Minute)

	application, err := app.New(slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)

	application.HTTPServer.BuildRouters()

	user := models.UserRef{ID: uuid.New(), Name: "Coordinador"}
	token, err := jwt.NewToken(user, cfg.Auth.TokenSecret, time.Hour)
	require.NoError(t, err)

	t.Cleanup(func() {
		t.Helper()
		application.UploadService.Wait()
		cancelCtx()
	})

	return ctx, &Suite{
		T:       t,
		Cfg:     cfg,
		App:     application,
		Handler: application.HTTPServer.Handler(),
		User:    user,
		Token:   token,
	}
}

func configPath() string {
	const key = "CONFIG_PATH"

	if v := os.Getenv(key); v != "" {
		return v
	}

	return "../config/config.yaml"
}
