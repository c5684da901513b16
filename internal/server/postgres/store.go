package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	pq "github.com/lib/pq"

	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/migration"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/migrations"
)

// foreignKeyViolation is the SQLSTATE PostgreSQL reports for a missing parent row.
const foreignKeyViolation = "23503"

var ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")

var habitColumns = []string{
	"id", "name", "description", "target_days", "tags", "archived",
	"notification_enabled", "notification_time", "created_at", "updated_at",
}

// Store keeps every user's habits and completions in PostgreSQL.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

type habitRow struct {
	ID                  string         `db:"id"`
	Name                string         `db:"name"`
	Description         string         `db:"description"`
	TargetDays          pq.Int64Array  `db:"target_days"`
	Tags                pq.StringArray `db:"tags"`
	Archived            bool           `db:"archived"`
	NotificationEnabled bool           `db:"notification_enabled"`
	NotificationTime    string         `db:"notification_time"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

type completionRow struct {
	HabitID     string    `db:"habit_id"`
	DayKey      string    `db:"day_key"`
	CompletedAt time.Time `db:"completed_at"`
}

func (r habitRow) habit() models.Habit {
	h := models.Habit{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Archived:            r.Archived,
		NotificationEnabled: r.NotificationEnabled,
		NotificationTime:    r.NotificationTime,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	for _, d := range r.TargetDays {
		h.TargetDays = append(h.TargetDays, time.Weekday(d))
	}
	if len(r.Tags) > 0 {
		h.Tags = []string(r.Tags)
	}
	return h
}

func weekdayArray(days []time.Weekday) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

func tagArray(tags []string) pq.StringArray {
	if tags == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(tags)
}

// Open connects to connStr and brings the schema up to date.
func Open(ctx context.Context, connStr string) (*Store, error) {
	if err := ValidateConnString(connStr); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(connStr) {
			return nil, fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewWithDB(db)
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) runMigrations() error {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}

	runner := migration.NewRunner(s.db.DB, subFS, migration.WithDollarPlaceholders())
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

// hasSSLMode checks if the connection string contains an sslmode parameter key (case-insensitive).
// It supports both URL-style and DSN-style connection strings.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}

	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "sslmode") {
			return true
		}
	}
	return false
}

// ValidateConnString checks that connStr is a PostgreSQL URI or DSN the
// driver accepts.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
			return fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
	}
	return nil
}

func (s *Store) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	query, args, err := s.sb.Select(habitColumns...).
		From("habits").
		Where("user_id = ?", userID).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []habitRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	habits := make([]models.Habit, 0, len(rows))
	for _, r := range rows {
		habits = append(habits, r.habit())
	}
	return habits, nil
}

func (s *Store) ListCompletions(ctx context.Context, userID string) ([]models.DatedCompletion, error) {
	query, args, err := s.sb.Select("habit_id", "day_key", "completed_at").
		From("habit_completions").
		Where("user_id = ?", userID).
		OrderBy("day_key", "habit_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []completionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	out := make([]models.DatedCompletion, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.DatedCompletion{HabitID: r.HabitID, DayKey: r.DayKey, CompletedAt: r.CompletedAt.UTC()})
	}
	return out, nil
}

func (s *Store) GetHabit(ctx context.Context, userID, id string) (models.Habit, error) {
	query, args, err := s.sb.Select(habitColumns...).
		From("habits").
		Where("user_id = ? AND id = ?", userID, id).
		ToSql()
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to build query: %w", err)
	}

	var row habitRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, apperrors.NotFound("habit", id)
		}
		return models.Habit{}, fmt.Errorf("failed to get habit: %w", err)
	}
	return row.habit(), nil
}

func (s *Store) CreateHabit(ctx context.Context, userID string, h models.Habit) (bool, error) {
	query, args, err := s.sb.Insert("habits").
		Columns(append([]string{"user_id"}, habitColumns...)...).
		Values(userID, h.ID, h.Name, h.Description, weekdayArray(h.TargetDays), tagArray(h.Tags),
			h.Archived, h.NotificationEnabled, h.NotificationTime, h.CreatedAt, h.UpdatedAt).
		Suffix("ON CONFLICT (user_id, id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to create habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *Store) UpdateHabit(ctx context.Context, userID string, h models.Habit) error {
	query, args, err := s.sb.Update("habits").
		Set("name", h.Name).
		Set("description", h.Description).
		Set("target_days", weekdayArray(h.TargetDays)).
		Set("tags", tagArray(h.Tags)).
		Set("archived", h.Archived).
		Set("notification_enabled", h.NotificationEnabled).
		Set("notification_time", h.NotificationTime).
		Set("updated_at", h.UpdatedAt).
		Where("user_id = ? AND id = ?", userID, h.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("habit", h.ID)
	}
	return nil
}

// DeleteHabit relies on ON DELETE CASCADE to drop the habit's completions.
func (s *Store) DeleteHabit(ctx context.Context, userID, id string) (bool, error) {
	query, args, err := s.sb.Delete("habits").
		Where("user_id = ? AND id = ?", userID, id).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	return s.execAffected(ctx, "delete habit", query, args)
}

func (s *Store) HasCompletion(ctx context.Context, userID, habitID, dayKey string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").
		From("habit_completions").
		Where("user_id = ? AND habit_id = ? AND day_key = ?", userID, habitID, dayKey).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return count > 0, nil
}

func (s *Store) AddCompletion(ctx context.Context, userID string, c models.DatedCompletion) (bool, error) {
	query, args, err := s.sb.Insert("habit_completions").
		Columns("user_id", "habit_id", "day_key", "completed_at").
		Values(userID, c.HabitID, c.DayKey, c.CompletedAt).
		Suffix("ON CONFLICT (user_id, habit_id, day_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return false, apperrors.NotFound("habit", c.HabitID)
		}
		return false, fmt.Errorf("failed to add completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *Store) RemoveCompletion(ctx context.Context, userID, habitID, dayKey string) (bool, error) {
	query, args, err := s.sb.Delete("habit_completions").
		Where("user_id = ? AND habit_id = ? AND day_key = ?", userID, habitID, dayKey).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	return s.execAffected(ctx, "remove completion", query, args)
}

func (s *Store) execAffected(ctx context.Context, op, query string, args []interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
