package persistence

import "lighter-grid-bot-go/internal/models"

// FillRepository defines the interface for the fill journal.
// The journal is an audit trail only: the bot never reads it back to rebuild
// grid state, since every start cancels all orders and reseeds.
type FillRepository interface {
	// SaveFill appends one detected fill.
	SaveFill(fill models.FillRecord) error

	// SaveSummary stores the totals of a run, replacing any previous summary
	// for the same run id.
	SaveSummary(summary models.RunSummary) error

	// LoadFills returns every fill of a run in detection order.
	LoadFills(runID string) ([]models.FillRecord, error)

	// LoadSummary loads a run summary.
	// If no summary is found, it should return (nil, nil).
	LoadSummary(runID string) (*models.RunSummary, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
