package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding decision records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "minute.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in
// ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Decisions ---

// Timestamps are stored with a fixed-width nanosecond fraction so the
// strings sort lexicographically in temporal order; RFC3339Nano drops
// trailing zeros, which breaks ORDER BY for records created within the
// same second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CreateDecision validates nd, assigns an id and createdAt, and persists
// the record owned by ownerID. The owner always comes from the caller's
// authenticated identity, never from the record fields.
func (s *Store) CreateDecision(ownerID string, nd NewDecision) (Decision, error) {
	now := time.Now().UTC()
	d := Decision{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Question:      strings.TrimSpace(nd.Question),
		Pros:          fillItemTimes(nd.Pros, now),
		Cons:          fillItemTimes(nd.Cons, now),
		FinalDecision: nd.FinalDecision,
		Notes:         nd.Notes,
		TimeSpent:     nd.TimeSpent,
		IsCompleted:   nd.IsCompleted,
		CreatedAt:     now,
	}
	if d.IsCompleted {
		t := now
		d.CompletedAt = &t
	}

	if err := validateDecision(d); err != nil {
		return Decision{}, err
	}

	pros, cons, err := marshalItems(d)
	if err != nil {
		return Decision{}, err
	}

	var completedAt any
	if d.CompletedAt != nil {
		completedAt = d.CompletedAt.Format(timeLayout)
	}

	_, err = s.db.Exec(`
		INSERT INTO decisions (id, owner_id, question, pros, cons, final_decision, notes, time_spent, is_completed, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Question, pros, cons, d.FinalDecision, d.Notes,
		d.TimeSpent, d.IsCompleted, d.CreatedAt.Format(timeLayout), completedAt,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("inserting decision: %w", err)
	}
	return d, nil
}

// GetDecision returns the decision with the given id. It returns
// ErrNotFound when no such record exists and ErrNotOwned when the record
// exists but belongs to someone else; existence is confirmed before
// ownership so the two outcomes stay distinguishable.
func (s *Store) GetDecision(ownerID, id string) (Decision, error) {
	d, err := s.getDecision(id)
	if err != nil {
		return Decision{}, err
	}
	if d.OwnerID != ownerID {
		return Decision{}, ErrNotOwned
	}
	return d, nil
}

// ListDecisions returns all decisions owned by ownerID, most recent first.
func (s *Store) ListDecisions(ownerID string) ([]Decision, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, question, pros, cons, final_decision, notes, time_spent, is_completed, created_at, completed_at
		FROM decisions WHERE owner_id = ? ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// UpdateDecision applies the non-nil fields of upd to the record and
// returns the full updated decision. Setting IsCompleted true stamps
// completedAt with the current time; setting it false retains the most
// recent completion timestamp.
func (s *Store) UpdateDecision(ownerID, id string, upd DecisionUpdate) (Decision, error) {
	d, err := s.GetDecision(ownerID, id)
	if err != nil {
		return Decision{}, err
	}

	now := time.Now().UTC()
	if upd.Question != nil {
		d.Question = strings.TrimSpace(*upd.Question)
	}
	if upd.Pros != nil {
		d.Pros = fillItemTimes(*upd.Pros, now)
	}
	if upd.Cons != nil {
		d.Cons = fillItemTimes(*upd.Cons, now)
	}
	if upd.FinalDecision != nil {
		d.FinalDecision = *upd.FinalDecision
	}
	if upd.Notes != nil {
		d.Notes = *upd.Notes
	}
	if upd.TimeSpent != nil {
		d.TimeSpent = *upd.TimeSpent
	}
	if upd.IsCompleted != nil {
		d.IsCompleted = *upd.IsCompleted
		if d.IsCompleted {
			t := now
			d.CompletedAt = &t
		}
	}

	if err := validateDecision(d); err != nil {
		return Decision{}, err
	}

	pros, cons, err := marshalItems(d)
	if err != nil {
		return Decision{}, err
	}

	var completedAt any
	if d.CompletedAt != nil {
		completedAt = d.CompletedAt.Format(timeLayout)
	}

	_, err = s.db.Exec(`
		UPDATE decisions
		SET question = ?, pros = ?, cons = ?, final_decision = ?, notes = ?, time_spent = ?, is_completed = ?, completed_at = ?
		WHERE id = ?`,
		d.Question, pros, cons, d.FinalDecision, d.Notes, d.TimeSpent, d.IsCompleted, completedAt, d.ID,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("updating decision: %w", err)
	}
	return d, nil
}

// DeleteDecision removes the record permanently after the same
// existence/ownership checks as GetDecision.
func (s *Store) DeleteDecision(ownerID, id string) error {
	if _, err := s.GetDecision(ownerID, id); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM decisions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) getDecision(id string) (Decision, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, question, pros, cons, final_decision, notes, time_spent, is_completed, created_at, completed_at
		FROM decisions WHERE id = ?`, id,
	)
	d, err := scanDecision(row.Scan)
	if err == sql.ErrNoRows {
		return Decision{}, ErrNotFound
	}
	return d, err
}

func scanDecision(scan func(dest ...any) error) (Decision, error) {
	var d Decision
	var pros, cons, createdAt string
	var completedAt sql.NullString
	if err := scan(&d.ID, &d.OwnerID, &d.Question, &pros, &cons, &d.FinalDecision,
		&d.Notes, &d.TimeSpent, &d.IsCompleted, &createdAt, &completedAt); err != nil {
		return Decision{}, err
	}

	if err := json.Unmarshal([]byte(pros), &d.Pros); err != nil {
		return Decision{}, fmt.Errorf("parsing pros: %w", err)
	}
	if err := json.Unmarshal([]byte(cons), &d.Cons); err != nil {
		return Decision{}, fmt.Errorf("parsing cons: %w", err)
	}
	if d.Pros == nil {
		d.Pros = []ListItem{}
	}
	if d.Cons == nil {
		d.Cons = []ListItem{}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Decision{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t

	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return Decision{}, fmt.Errorf("parsing completed_at: %w", err)
		}
		d.CompletedAt = &t
	}
	return d, nil
}

func marshalItems(d Decision) (pros string, cons string, err error) {
	p, err := json.Marshal(d.Pros)
	if err != nil {
		return "", "", fmt.Errorf("marshalling pros: %w", err)
	}
	c, err := json.Marshal(d.Cons)
	if err != nil {
		return "", "", fmt.Errorf("marshalling cons: %w", err)
	}
	return string(p), string(c), nil
}

// fillItemTimes copies items, trimming text and stamping any zero
// CreatedAt with now. The copy keeps each record's lists from aliasing
// caller-held slices.
func fillItemTimes(items []ListItem, now time.Time) []ListItem {
	out := make([]ListItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Text = strings.TrimSpace(it.Text)
		if out[i].CreatedAt.IsZero() {
			out[i].CreatedAt = now
		}
	}
	return out
}
