package db

// Schema defines the SQLite schema for the update attempt journal.
// Rows are written as an attempt progresses and are never read back to
// resume one; a restarted agent always begins in Idle.
const Schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    artifact TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('downloading', 'verifying', 'applying', 'rebooting', 'completed', 'failed', 'timed_out', 'cancelled')),
    size_bytes INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);
CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts(created_at);
`

// Status constants
const (
	StatusDownloading = "downloading"
	StatusVerifying   = "verifying"
	StatusApplying    = "applying"
	StatusRebooting   = "rebooting"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusTimedOut    = "timed_out"
	StatusCancelled   = "cancelled"
)

// Attempt is one pass from Downloading towards Rebooting
type Attempt struct {
	ID           string
	Artifact     string
	Status       string
	SizeBytes    int64
	ErrorMessage string
	CreatedAt    string
	UpdatedAt    string
}
