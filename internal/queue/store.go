package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nativize/internal/config"
	"nativize/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewJob inserts a job awaiting pickup by a worker. The caller must have
// validated the target language already.
func (s *Store) NewJob(ctx context.Context, sourcePath, targetLanguage, voice string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, title, source_path, target_language, voice, status, progress,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		inferTitleFromPath(sourcePath),
		sourcePath,
		targetLanguage,
		nullableString(voice),
		StatusPending,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists the full job record in one statement so status and
// progress can never be observed out of step with each other. The
// heartbeat column is deliberately not written here: it belongs to the
// claim protocol (ClaimNext, UpdateHeartbeat, Release, Requeue) and a
// mid-stage persist must not overwrite a fresher stamp with the claim
// time the worker still holds in memory.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if _, ok := statusSet[job.Status]; !ok {
		return services.Wrap(services.ErrValidation, "", "update_job",
			fmt.Sprintf("unknown status %q", job.Status), nil)
	}
	if job.Progress < 0 || job.Progress > 100 {
		return services.Wrap(services.ErrValidation, "", "update_job",
			fmt.Sprintf("progress %d outside 0..100", job.Progress), nil)
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET title = ?, source_path = ?, source_ref = ?, target_language = ?,
             voice = ?, status = ?, progress = ?, segments_json = ?, report_json = ?,
             error_kind = ?, error_message = ?, error_retriable = ?,
             output_ref = ?, mobile_output_ref = ?, whatsapp_ref = ?, subtitles_ref = ?,
             words_localized = ?, duration_seconds = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.Title),
		nullableString(job.SourcePath),
		nullableString(job.SourceRef),
		job.TargetLanguage,
		nullableString(job.Voice),
		job.Status,
		job.Progress,
		nullableString(job.SegmentsJSON),
		nullableString(job.ReportJSON),
		nullableString(job.ErrorKind),
		nullableString(job.ErrorMessage),
		boolToInt(job.ErrorRetriable),
		nullableString(job.OutputRef),
		nullableString(job.MobileOutputRef),
		nullableString(job.WhatsAppRef),
		nullableString(job.SubtitlesRef),
		job.WordsLocalized,
		job.DurationSeconds,
		nullableTime(job.CompletedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNext atomically takes ownership of the oldest unclaimed job in a
// claimable state by stamping its heartbeat. Returns nil when no job is
// available.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	for {
		placeholders := makePlaceholders(len(claimableStatuses))
		args := make([]any, 0, len(claimableStatuses))
		for _, status := range claimableStatuses {
			args = append(args, status)
		}
		query := `SELECT ` + jobColumns + ` FROM jobs
            WHERE status IN (` + placeholders + `) AND last_heartbeat IS NULL
            ORDER BY created_at LIMIT 1`
		row := s.db.QueryRowContext(ctx, query, args...)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("claim candidate: %w", err)
		}

		now := time.Now().UTC()
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND last_heartbeat IS NULL`,
			now.Format(time.RFC3339Nano),
			now.Format(time.RFC3339Nano),
			job.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker took it between the select and the update.
			continue
		}
		job.LastHeartbeat = &now
		job.UpdatedAt = now
		return job, nil
	}
}

// Release clears a job's heartbeat so another worker may claim it, used
// when a worker pauses at the review gate or shuts down cleanly.
func (s *Store) Release(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// Requeue hands a claimed job back to the queue in the nearest
// claimable state, used when a worker shuts down mid-stage. Work before
// the review gate restarts from pending; work past it resumes at audio
// generation. Progress is left in place and cannot move backwards when
// the job re-runs.
func (s *Store) Requeue(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = CASE
                 WHEN status IN (?, ?) THEN ?
                 WHEN status IN (?, ?) THEN ?
                 ELSE status
             END,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusUploading, StatusAnalyzing, StatusPending,
		StatusGeneratingAudio, StatusStitching, StatusGeneratingAudio,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the ownership stamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails jobs whose worker stopped heartbeating. The failure
// is recorded as retriable so the job can be requeued; progress is left
// where the dead worker last wrote it.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	placeholders := makePlaceholders(len(processingStatuses) + 1)
	args := make([]any, 0, len(processingStatuses)+5)
	args = append(args, StatusFailed, string(services.KindUnavailable), StaleReclaimReason,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	args = append(args, StatusPending)
	for status := range processingStatuses {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
        SET status = ?, error_kind = ?, error_message = ?, error_retriable = 1,
            last_heartbeat = NULL, completed_at = COALESCE(completed_at, ?), updated_at = ?
        WHERE status IN (`+placeholders+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed requeues failed jobs. Jobs that already have segments
// resume at audio generation so finished analysis is not repeated;
// earlier failures start over from pending.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	jobs, err := s.List(ctx, StatusFailed)
	if err != nil {
		return 0, err
	}
	selected := jobs
	if len(ids) > 0 {
		wanted := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
		selected = selected[:0]
		for _, job := range jobs {
			if _, ok := wanted[job.ID]; ok {
				selected = append(selected, job)
			}
		}
	}

	var count int64
	for _, job := range selected {
		target := StatusPending
		progress := 0
		if job.HasSegments() {
			target = StatusGeneratingAudio
			progress = StageCeiling(StatusNeedsReview)
		}
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
            SET status = ?, progress = ?, error_kind = NULL, error_message = NULL,
                error_retriable = 0, last_heartbeat = NULL, completed_at = NULL, updated_at = ?
            WHERE id = ? AND status = ?`,
			target,
			progress,
			time.Now().UTC().Format(time.RFC3339Nano),
			job.ID,
			StatusFailed,
		)
		if err != nil {
			return count, fmt.Errorf("retry job %s: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return count, fmt.Errorf("retry rows affected: %w", err)
		}
		count += affected
	}
	return count, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusNeedsReview:
			health.Review += count
		case StatusFailed:
			health.Failed += count
		case StatusComplete:
			health.Complete += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the job database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("job database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a job and its segments by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearComplete removes only completed jobs.
func (s *Store) ClearComplete(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusComplete)
	if err != nil {
		return 0, fmt.Errorf("clear complete: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, title, source_path, source_ref, target_language, voice, status, progress, segments_json, report_json, error_kind, error_message, error_retriable, output_ref, mobile_output_ref, whatsapp_ref, subtitles_ref, words_localized, duration_seconds, completed_at, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		title           sql.NullString
		sourcePath      sql.NullString
		sourceRef       sql.NullString
		targetLanguage  string
		voice           sql.NullString
		statusStr       string
		progress        sql.NullInt64
		segmentsJSON    sql.NullString
		reportJSON      sql.NullString
		errorKind       sql.NullString
		errorMessage    sql.NullString
		errorRetriable  sql.NullInt64
		outputRef       sql.NullString
		mobileOutputRef sql.NullString
		whatsappRef     sql.NullString
		subtitlesRef    sql.NullString
		wordsLocalized  sql.NullInt64
		durationSeconds sql.NullFloat64
		completedRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourcePath,
		&sourceRef,
		&targetLanguage,
		&voice,
		&statusStr,
		&progress,
		&segmentsJSON,
		&reportJSON,
		&errorKind,
		&errorMessage,
		&errorRetriable,
		&outputRef,
		&mobileOutputRef,
		&whatsappRef,
		&subtitlesRef,
		&wordsLocalized,
		&durationSeconds,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Title:           title.String,
		SourcePath:      sourcePath.String,
		SourceRef:       sourceRef.String,
		TargetLanguage:  targetLanguage,
		Voice:           voice.String,
		Status:          Status(statusStr),
		Progress:        int(progress.Int64),
		SegmentsJSON:    segmentsJSON.String,
		ReportJSON:      reportJSON.String,
		ErrorKind:       errorKind.String,
		ErrorMessage:    errorMessage.String,
		ErrorRetriable:  errorRetriable.Int64 != 0,
		OutputRef:       outputRef.String,
		MobileOutputRef: mobileOutputRef.String,
		WhatsAppRef:     whatsappRef.String,
		SubtitlesRef:    subtitlesRef.String,
		WordsLocalized:  int(wordsLocalized.Int64),
		DurationSeconds: durationSeconds.Float64,
	}

	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromPath(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	if base == "" {
		return "Untitled Video"
	}
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	cleaned := strings.TrimSpace(strings.NewReplacer("_", " ", ".", " ").Replace(base))
	if cleaned == "" {
		return "Untitled Video"
	}
	return cleaned
}
