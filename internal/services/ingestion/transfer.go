package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"clubmedia/internal/domain/models"
)

// ProgressFunc получает процент выполнения переноса, от 0 до 100 включительно
type ProgressFunc func(percent int)

// TransferResult результат переноса одного изображения
type TransferResult struct {
	LocalID   int64
	URI       string
	SizeBytes *int64
}

// Transferer переносит изображения в постоянное хранилище.
// Должен вернуть ровно один результат на каждое переданное изображение.
type Transferer interface {
	Transfer(ctx context.Context, assets []models.PendingAsset, onProgress ProgressFunc) ([]TransferResult, error)
}

var ErrSimulatedFailure = errors.New("simulated transfer failure")

// SimulatedTransfer имитирует сетевую загрузку: Steps равных шагов с паузой StepDelay.
// Без ResolveURI адреса изображений возвращаются без изменений.
type SimulatedTransfer struct {
	Steps     int
	StepDelay time.Duration

	// FailAtStep > 0 прерывает перенос с ErrSimulatedFailure на указанном шаге
	FailAtStep int

	// ResolveURI, если задан, превращает SourceURI в адрес готовой фотографии
	ResolveURI func(sourceURI string) string
}

func NewSimulatedTransfer(steps int, stepDelay time.Duration) *SimulatedTransfer {
	if steps < 1 {
		steps = 1
	}
	return &SimulatedTransfer{Steps: steps, StepDelay: stepDelay}
}

func (t *SimulatedTransfer) Transfer(ctx context.Context, assets []models.PendingAsset, onProgress ProgressFunc) ([]TransferResult, error) {
	steps := t.Steps
	if steps < 1 {
		steps = 1
	}

	for step := 1; step <= steps; step++ {
		if t.StepDelay > 0 {
			timer := time.NewTimer(t.StepDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		if t.FailAtStep > 0 && step >= t.FailAtStep {
			return nil, ErrSimulatedFailure
		}

		if onProgress != nil {
			onProgress(step * 100 / steps)
		}
	}

	results := make([]TransferResult, 0, len(assets))
	for _, a := range assets {
		res := TransferResult{LocalID: a.LocalID, URI: a.SourceURI}
		if t.ResolveURI != nil {
			res.URI = t.ResolveURI(a.SourceURI)
		}
		if a.SizeBytes != nil {
			size := *a.SizeBytes
			res.SizeBytes = &size
		}
		results = append(results, res)
	}

	return results, nil
}

// progressReporter приводит значения к диапазону 0..100 и пропускает только возрастающие.
// После close вызовы игнорируются, даже если Transferer продолжает сообщать прогресс.
type progressReporter struct {
	mu     sync.Mutex
	last   int
	closed bool
	set    func(int)
	cb     ProgressFunc
}

func (r *progressReporter) report(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || pct <= r.last {
		return
	}
	r.last = pct

	if r.set != nil {
		r.set(pct)
	}
	if r.cb != nil {
		r.cb(pct)
	}
}

func (r *progressReporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
