package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_fleet_core",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_popup_displays",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_popup_feedback",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// Fleet business tables. The engagement engine only reads these; writes come
// from the main fleet application sharing the database.
const migration001Up = `
CREATE TABLE IF NOT EXISTS vehicles (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id UUID NOT NULL,
	name TEXT NOT NULL,
	registration TEXT,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_owner ON vehicles (owner_id);

CREATE TABLE IF NOT EXISTS checklists (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id UUID NOT NULL,
	vehicle_id UUID REFERENCES vehicles (id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	completed_at TIMESTAMP WITH TIME ZONE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_checklists_owner ON checklists (owner_id);

CREATE TABLE IF NOT EXISTS maintenance_records (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id UUID NOT NULL,
	vehicle_id UUID REFERENCES vehicles (id) ON DELETE CASCADE,
	description TEXT,
	amount_minor BIGINT NOT NULL DEFAULT 0,
	performed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_maintenance_owner ON maintenance_records (owner_id);

CREATE TABLE IF NOT EXISTS fuel_records (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id UUID NOT NULL,
	vehicle_id UUID REFERENCES vehicles (id) ON DELETE CASCADE,
	liters NUMERIC(10, 2),
	amount_minor BIGINT NOT NULL DEFAULT 0,
	filled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_fuel_owner ON fuel_records (owner_id);
`

const migration001Down = `
DROP TABLE IF EXISTS fuel_records;
DROP TABLE IF EXISTS maintenance_records;
DROP TABLE IF EXISTS checklists;
DROP TABLE IF EXISTS vehicles;
`

// Display history. One row per (user, rule); times_shown only ever grows.
const migration002Up = `
CREATE TABLE IF NOT EXISTS popup_displays (
	user_id UUID NOT NULL,
	rule_id TEXT NOT NULL,
	times_shown INTEGER NOT NULL DEFAULT 0,
	last_shown_at TIMESTAMP WITH TIME ZONE,
	last_outcome TEXT NOT NULL DEFAULT 'none',
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, rule_id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS popup_displays;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS popup_feedback (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	rule_id TEXT NOT NULL,
	feedback_text TEXT NOT NULL,
	submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_popup_feedback_user ON popup_feedback (user_id, submitted_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS popup_feedback;
`
