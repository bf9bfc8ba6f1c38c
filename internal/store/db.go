// Package store persists attempt results in SQLite: every result in
// tasks_prod, successful accounts again in tasks_sale for hand-out.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

// TaskType tags rows written by this registration flow
const TaskType = "1500"

const timeLayout = "2006-01-02 15:04:05"

// DB wraps the results database
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Row is one tasks_prod record
type Row struct {
	ID        int64
	Idx       string
	TaskType  string
	Phone     string
	Password  string
	Nickname  string
	DOB       string
	Age       string
	Region    string
	Status    string
	Error     string
	CreatedAt string
}

// SaleRow is one tasks_sale record
type SaleRow struct {
	ID           int64
	Idx          string
	TaskType     string
	Phone        string
	Password     string
	Nickname     string
	DOB          string
	Age          string
	Region       string
	AssignStatus string
	AssignUser   string
	AssignTime   string
	CreatedAt    string
}

// Open creates or opens the database at path
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks_prod (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			idx        TEXT,
			task_type  TEXT,
			phone      TEXT,
			password   TEXT,
			nick       TEXT,
			dob        TEXT,
			age        TEXT,
			region     TEXT,
			status     TEXT,
			error      TEXT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks_sale (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			idx           TEXT,
			task_type     TEXT,
			phone         TEXT,
			password      TEXT,
			nick          TEXT,
			dob           TEXT,
			age           TEXT,
			region        TEXT,
			assign_status TEXT DEFAULT 'unassigned',
			assign_user   TEXT,
			assign_time   TIMESTAMP,
			created_at    TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prod_phone ON tasks_prod(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_status ON tasks_sale(assign_status)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Age returns whole years between dob (YYYY-MM-DD) and now, or "" when dob
// does not parse
func Age(dob string, now time.Time) string {
	born, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return ""
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return strconv.Itoa(years)
}

// Insert records a result; successful results are also offered for sale
func (d *DB) Insert(ctx context.Context, r models.WorkerResult) error {
	now := d.now()
	created := now.Format(timeLayout)
	age := Age(r.DOB, now)
	idx := strconv.Itoa(r.Index)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks_prod (idx, task_type, phone, password, nick, dob, age, region, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idx, TaskType, r.Phone, r.Password, r.Nickname, r.DOB, age, r.Region, string(r.Status), r.Error, created)
	if err != nil {
		return fmt.Errorf("insert tasks_prod: %w", err)
	}

	if r.Succeeded() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks_sale (idx, task_type, phone, password, nick, dob, age, region, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			idx, TaskType, r.Phone, r.Password, r.Nickname, r.DOB, age, r.Region, created)
		if err != nil {
			return fmt.Errorf("insert tasks_sale: %w", err)
		}
	}

	return tx.Commit()
}

// Sink adapts Insert to a result callback. Write failures are logged and
// never reach the caller.
func (d *DB) Sink(log logging.Sink) func(models.WorkerResult) {
	if log == nil {
		log = logging.Discard
	}
	return func(r models.WorkerResult) {
		if err := d.Insert(context.Background(), r); err != nil {
			log.Log(logging.Record{
				Level:  logging.LevelError,
				Worker: r.Index,
				Action: "db",
				Msg:    fmt.Sprintf("failed to store result: %v", err),
			})
		}
	}
}

// Prod returns every tasks_prod row, oldest first
func (d *DB) Prod(ctx context.Context) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, idx, task_type, phone, password, nick, dob, age, region, status,
		        COALESCE(error, ''), CAST(created_at AS TEXT)
		 FROM tasks_prod ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks_prod: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Idx, &r.TaskType, &r.Phone, &r.Password, &r.Nickname,
			&r.DOB, &r.Age, &r.Region, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tasks_prod: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sale returns every tasks_sale row, oldest first
func (d *DB) Sale(ctx context.Context) ([]SaleRow, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, idx, task_type, phone, password, nick, dob, age, region,
		        COALESCE(assign_status, ''), COALESCE(assign_user, ''), CAST(COALESCE(assign_time, '') AS TEXT), CAST(created_at AS TEXT)
		 FROM tasks_sale ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks_sale: %w", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var r SaleRow
		if err := rows.Scan(&r.ID, &r.Idx, &r.TaskType, &r.Phone, &r.Password, &r.Nickname,
			&r.DOB, &r.Age, &r.Region, &r.AssignStatus, &r.AssignUser, &r.AssignTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tasks_sale: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
