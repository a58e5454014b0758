package persistence

import (
	"lighter-grid-bot-go/internal/models"
	"sync"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// NewRunID returns a short, URL-safe identifier for one bot run.
func NewRunID() string {
	id := uuid.New()
	return base62.EncodeToString(id[:])
}

// Recorder writes fills to a FillRepository on a background goroutine so that
// a slow disk never stalls the reconciliation loop.
type Recorder struct {
	repo     FillRepository
	fillChan chan models.FillRecord
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logger   *zap.Logger
}

// NewRecorder creates a new Recorder. Call Start before recording.
func NewRecorder(repo FillRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:     repo,
		fillChan: make(chan models.FillRecord, 256), // Buffered channel for fills to be persisted
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start begins the persistence loop.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.persistenceLoop()
	r.logger.Sugar().Info("Fill recorder started.")
}

// RecordFill queues a fill for persistence. It never blocks; when the buffer
// is full the fill is dropped and logged.
func (r *Recorder) RecordFill(fill models.FillRecord) {
	select {
	case r.fillChan <- fill:
	default:
		r.logger.Sugar().Warnf("Fill journal buffer full, dropping fill at %.4f (%s)", fill.Price, models.SideName(fill.IsAsk))
	}
}

// RecordSummary saves the run summary synchronously.
func (r *Recorder) RecordSummary(summary models.RunSummary) {
	if err := r.repo.SaveSummary(summary); err != nil {
		r.logger.Sugar().Errorf("Failed to save run summary: %v", err)
	}
}

// Stop flushes queued fills and stops the persistence loop. Safe to call more than once.
func (r *Recorder) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
		r.logger.Sugar().Info("Fill recorder stopped.")
	})
}

// persistenceLoop handles the asynchronous saving of fills.
func (r *Recorder) persistenceLoop() {
	defer r.wg.Done()
	for {
		select {
		case fill := <-r.fillChan:
			r.save(fill)
		case <-r.stopChan:
			// Drain what is already queued before exiting.
			for {
				select {
				case fill := <-r.fillChan:
					r.save(fill)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) save(fill models.FillRecord) {
	if err := r.repo.SaveFill(fill); err != nil {
		r.logger.Sugar().Errorf("CRITICAL: Failed to save fill: %v", err)
	}
}
