package postgres

import (
	"context"

	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNAL REPOSITORY
// Aggregates fleet business data into behavioral signals. One query per
// snapshot; visit counts come from Redis and are merged in by the composite
// signal store.
// ══════════════════════════════════════════════════════════════════════════════

// SignalRepository computes business-data signals from the fleet tables.
type SignalRepository struct {
	conn *Connection
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(conn *Connection) *SignalRepository {
	return &SignalRepository{conn: conn}
}

// Snapshot aggregates the user's fleet data into signal values. The
// dataInputs signal is the total of all records the user has created.
func (r *SignalRepository) Snapshot(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM vehicles WHERE owner_id = $1),
			(SELECT COUNT(*) FROM checklists WHERE owner_id = $1),
			(SELECT COUNT(*) FROM maintenance_records WHERE owner_id = $1),
			(SELECT COUNT(*) FROM fuel_records WHERE owner_id = $1),
			(SELECT COALESCE(SUM(amount_minor), 0) FROM maintenance_records WHERE owner_id = $1),
			(SELECT COALESCE(SUM(amount_minor), 0) FROM fuel_records WHERE owner_id = $1)
	`

	var vehicles, checklists, maintenance, fuel int64
	var maintenanceAmount, fuelAmount int64

	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&vehicles, &checklists, &maintenance, &fuel,
		&maintenanceAmount, &fuelAmount,
	)
	if err != nil {
		return nil, shared.WrapError("signal", "Snapshot", shared.ErrPersistence,
			"failed to aggregate fleet signals", err)
	}

	return engagement.SignalSnapshot{
		shared.SignalVehicles:          float64(vehicles),
		shared.SignalChecklists:        float64(checklists),
		shared.SignalMaintenanceCount:  float64(maintenance),
		shared.SignalFuelCount:         float64(fuel),
		shared.SignalMaintenanceAmount: float64(maintenanceAmount),
		shared.SignalFuelAmount:        float64(fuelAmount),
		shared.SignalDataInputs:        float64(checklists + maintenance + fuel),
	}, nil
}
