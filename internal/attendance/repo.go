package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pipeline state of an attendance record.
const (
	StatePending  = "pending"
	StateRecorded = "recorded"
)

// Record is one student's attendance entry for one class.
type Record struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	StudentID string    `json:"student_id"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkerID  *string   `json:"marker_id,omitempty"`
	When      time.Time `json:"when"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a platform user able to log in.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists classes, attendance records, and accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveClass inserts or refreshes a scheduled class, e.g. one fetched from the
// course catalog.
func (r *Repository) SaveClass(ctx context.Context, class ScheduledClass) error {
	if class.ID == "" {
		return errors.New("class id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_classes (id, course_id, title, teacher_id, scheduled_at, duration_minutes)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			title = EXCLUDED.title,
			teacher_id = EXCLUDED.teacher_id,
			scheduled_at = EXCLUDED.scheduled_at,
			duration_minutes = EXCLUDED.duration_minutes
	`, class.ID, class.CourseID, class.Title, class.TeacherID, class.ScheduledAt, class.DurationMinutes)
	return err
}

// GetClass returns a class by id, or nil when unknown.
func (r *Repository) GetClass(ctx context.Context, id string) (*ScheduledClass, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, title, teacher_id, scheduled_at, duration_minutes, created_at
		FROM scheduled_classes WHERE id = $1
	`, id)
	var c ScheduledClass
	if err := row.Scan(&c.ID, &c.CourseID, &c.Title, &c.TeacherID, &c.ScheduledAt, &c.DurationMinutes, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListClasses returns classes with basic filters, soonest first.
func (r *Repository) ListClasses(ctx context.Context, courseID, teacherID string, limit, offset int) ([]ScheduledClass, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, course_id, title, teacher_id, scheduled_at, duration_minutes, created_at FROM scheduled_classes`
	args := []any{}
	clauses := []string{}
	if courseID != "" {
		args = append(args, courseID)
		clauses = append(clauses, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if teacherID != "" {
		args = append(args, teacherID)
		clauses = append(clauses, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY scheduled_at LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScheduledClass
	for rows.Next() {
		var c ScheduledClass
		if err := rows.Scan(&c.ID, &c.CourseID, &c.Title, &c.TeacherID, &c.ScheduledAt, &c.DurationMinutes, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// FindRecord returns the student's record for a class, or nil.
func (r *Repository) FindRecord(ctx context.Context, classID, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, student_id, status, marked_by, marker_id, occurred_at, state, created_at
		FROM attendance_records
		WHERE class_id = $1 AND student_id = $2
	`, classID, studentID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.Status, &rec.MarkedBy, &rec.MarkerID, &rec.When, &rec.State, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetRecord returns a single record by id.
func (r *Repository) GetRecord(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, student_id, status, marked_by, marker_id, occurred_at, state, created_at
		FROM attendance_records WHERE id = $1
	`, id)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.Status, &rec.MarkedBy, &rec.MarkerID, &rec.When, &rec.State, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpsertRecord writes an attendance record; a later staff mark overrides an
// earlier self check-in.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.When.IsZero() {
		rec.When = time.Now().UTC()
	}
	if rec.State == "" {
		rec.State = StatePending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, class_id, student_id, status, marked_by, marker_id, occurred_at, state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (class_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			marked_by = EXCLUDED.marked_by,
			marker_id = EXCLUDED.marker_id,
			occurred_at = EXCLUDED.occurred_at,
			state = EXCLUDED.state
		RETURNING id, created_at
	`, rec.ID, rec.ClassID, rec.StudentID, rec.Status, rec.MarkedBy, rec.MarkerID, rec.When, rec.State)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// MarkRecorded finalizes a record after the worker has processed it.
func (r *Repository) MarkRecorded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET state = $2 WHERE id = $1
	`, id, StateRecorded)
	return err
}

// ListRecords returns attendance records with basic filters.
func (r *Repository) ListRecords(ctx context.Context, classID, studentID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, class_id, student_id, status, marked_by, marker_id, occurred_at, state, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if classID != "" {
		args = append(args, classID)
		clauses = append(clauses, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if studentID != "" {
		args = append(args, studentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.Status, &rec.MarkedBy, &rec.MarkerID, &rec.When, &rec.State, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// GetAccountByUsername returns the account for login checks, or nil.
func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, name, role, password_hash, created_at
		FROM accounts WHERE username = $1
	`, username)
	var a Account
	if err := row.Scan(&a.ID, &a.Username, &a.Name, &a.Role, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return err
}

// RevokeRefreshTokens marks all of a user's refresh tokens revoked. This is
// the best-effort server-side invalidation run on logout and expiry.
func (r *Repository) RevokeRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID)
	return err
}
