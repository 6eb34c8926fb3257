package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newswatcher/internal/model"
	"newswatcher/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user and populates its ID and CreatedAt.
func (s *SQLite) CreateUser(ctx context.Context, u *model.User) error {
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, settings, created_at) VALUES (?, ?, ?)`,
		u.Email, string(settings), now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetUser returns a single user by its ID.
func (s *SQLite) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, settings, created_at FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// ListUsers returns all registered users.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, settings, created_at FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateSource inserts a new source and populates its ID and CreatedAt.
func (s *SQLite) CreateSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (user_id, name, kind, location, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		src.UserID, src.Name, string(src.Kind), src.Location, boolToInt(src.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	src.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetSource returns a single source by its ID.
func (s *SQLite) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, kind, location, is_active, last_fetch_at, created_at
		 FROM sources WHERE id = ?`, id,
	)
	return scanSource(row)
}

// ListSources returns all sources belonging to the given user.
func (s *SQLite) ListSources(ctx context.Context, userID int64) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, kind, location, is_active, last_fetch_at, created_at
		 FROM sources WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSources(rows)
}

// ListActiveSources returns all active sources across users.
func (s *SQLite) ListActiveSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, kind, location, is_active, last_fetch_at, created_at
		 FROM sources WHERE is_active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active sources: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSources(rows)
}

// UpdateSource persists changes to an existing source.
func (s *SQLite) UpdateSource(ctx context.Context, src *model.Source) error {
	var lastFetch *string
	if src.LastFetchAt != nil {
		v := src.LastFetchAt.UTC().Format(timeLayout)
		lastFetch = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET name = ?, kind = ?, location = ?, is_active = ?, last_fetch_at = ?
		 WHERE id = ?`,
		src.Name, string(src.Kind), src.Location, boolToInt(src.IsActive), lastFetch, src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// TouchSourceFetched updates only the source's last-fetch timestamp.
func (s *SQLite) TouchSourceFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET last_fetch_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

// InsertItem stores a fetched item, relying on the unique constraints on
// (source_id, url) and (source_id, external_id) to reject duplicates.
// It reports whether a new row was actually inserted.
func (s *SQLite) InsertItem(ctx context.Context, item *model.Item) (bool, error) {
	fetched := item.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	raw := sql.NullString{}
	if len(item.Raw) > 0 {
		raw = sql.NullString{String: string(item.Raw), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO items
		   (source_id, title, content, url, external_id, published_at, fetched_at, raw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourceID, item.Title, item.Content,
		nullString(item.URL), nullString(item.ExternalID),
		item.PublishedAt.UTC().Format(timeLayout), fetched.UTC().Format(timeLayout), raw,
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	return true, nil
}

// ListItems returns all items fetched from the given source.
func (s *SQLite) ListItems(ctx context.Context, sourceID int64) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, title, content, url, external_id, published_at, fetched_at, raw
		 FROM items WHERE source_id = ? ORDER BY id`, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// CreateTask inserts a new task and populates its ID and timestamps.
func (s *SQLite) CreateTask(ctx context.Context, t *model.Task) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, name, prompt, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Name, t.Prompt, boolToInt(t.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt, _ = time.Parse(timeLayout, now)
	t.UpdatedAt = t.CreatedAt
	return nil
}

// GetTask returns a single task by its ID.
func (s *SQLite) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, prompt, is_active, created_at, updated_at
		 FROM tasks WHERE id = ?`, id,
	)
	var t model.Task
	var isActive int
	var created, updated string
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Prompt, &isActive, &created, &updated); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.IsActive = isActive == 1
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	t.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &t, nil
}

// ListActiveTasks returns all active tasks belonging to the given user.
func (s *SQLite) ListActiveTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, prompt, is_active, created_at, updated_at
		 FROM tasks WHERE user_id = ? AND is_active = 1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var isActive int
		var created, updated string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Prompt, &isActive, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.IsActive = isActive == 1
		t.CreatedAt, _ = time.Parse(timeLayout, created)
		t.UpdatedAt, _ = time.Parse(timeLayout, updated)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask persists changes to an existing task.
func (s *SQLite) UpdateTask(ctx context.Context, t *model.Task) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, prompt = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Prompt, boolToInt(t.IsActive), now, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	t.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// DeleteTask removes a task along with its links and verdicts.
func (s *SQLite) DeleteTask(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM verdicts WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete verdicts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_tasks WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return tx.Commit()
}

// CreateLink associates a source with a task. Re-linking an existing pair is a no-op.
func (s *SQLite) CreateLink(ctx context.Context, sourceID, taskID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO source_tasks (source_id, task_id, created_at) VALUES (?, ?, ?)`,
		sourceID, taskID, now,
	)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// DeleteLink removes the association between a source and a task.
func (s *SQLite) DeleteLink(ctx context.Context, sourceID, taskID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM source_tasks WHERE source_id = ? AND task_id = ?`, sourceID, taskID,
	)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// ListLinkedSources returns all sources linked to the given task.
func (s *SQLite) ListLinkedSources(ctx context.Context, taskID int64) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.name, s.kind, s.location, s.is_active, s.last_fetch_at, s.created_at
		 FROM sources s
		 JOIN source_tasks st ON st.source_id = s.id
		 WHERE st.task_id = ? ORDER BY s.id`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query linked sources: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSources(rows)
}

// ListEligibleItems returns items from sources linked to the task, published
// at or after cutoff, that have no processed verdict for the task yet.
func (s *SQLite) ListEligibleItems(ctx context.Context, taskID int64, cutoff time.Time) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT i.id, i.source_id, i.title, i.content, i.url, i.external_id,
		        i.published_at, i.fetched_at, i.raw
		 FROM items i
		 JOIN source_tasks st ON st.source_id = i.source_id AND st.task_id = ?
		 LEFT JOIN verdicts v ON v.item_id = i.id AND v.task_id = ?
		 WHERE i.published_at >= ?
		   AND (v.item_id IS NULL OR v.processed = 0)
		 ORDER BY i.id`,
		taskID, taskID, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// SaveVerdict inserts or updates the verdict for an (item, task) pair.
func (s *SQLite) SaveVerdict(ctx context.Context, v *model.Verdict) error {
	now := time.Now().UTC().Format(timeLayout)
	var result *int
	if v.Result != nil {
		r := boolToInt(*v.Result)
		result = &r
	}
	var processedAt *string
	if v.ProcessedAt != nil {
		p := v.ProcessedAt.UTC().Format(timeLayout)
		processedAt = &p
	}
	response := sql.NullString{}
	if len(v.Response) > 0 {
		response = sql.NullString{String: string(v.Response), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (item_id, task_id, processed, result, response, processed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(item_id, task_id) DO UPDATE SET
		   processed = excluded.processed,
		   result = excluded.result,
		   response = excluded.response,
		   processed_at = excluded.processed_at,
		   updated_at = excluded.updated_at`,
		v.ItemID, v.TaskID, boolToInt(v.Processed), result, response, processedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	return nil
}

// GetVerdict returns the verdict for an (item, task) pair, if any.
func (s *SQLite) GetVerdict(ctx context.Context, itemID, taskID int64) (*model.Verdict, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_id, task_id, processed, result, response, processed_at, created_at, updated_at
		 FROM verdicts WHERE item_id = ? AND task_id = ?`, itemID, taskID,
	)
	return scanVerdict(row)
}

// ListVerdicts returns all verdicts recorded for the given task.
func (s *SQLite) ListVerdicts(ctx context.Context, taskID int64) ([]model.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, task_id, processed, result, response, processed_at, created_at, updated_at
		 FROM verdicts WHERE task_id = ? ORDER BY item_id`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var verdicts []model.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, *v)
	}
	return verdicts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var settings, created sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &settings, &created); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &u.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	if created.Valid {
		u.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &u, nil
}

func scanSource(row scannable) (*model.Source, error) {
	var s model.Source
	var kind string
	var isActive int
	var lastFetch, created sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &kind, &s.Location, &isActive, &lastFetch, &created)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	s.Kind = model.SourceKind(kind)
	s.IsActive = isActive == 1
	if lastFetch.Valid {
		t, _ := time.Parse(timeLayout, lastFetch.String)
		s.LastFetchAt = &t
	}
	if created.Valid {
		s.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &s, nil
}

func scanSources(rows *sql.Rows) ([]model.Source, error) {
	var sources []model.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

func scanItem(row scannable) (*model.Item, error) {
	var i model.Item
	var url, externalID, raw sql.NullString
	var published, fetched string
	err := row.Scan(&i.ID, &i.SourceID, &i.Title, &i.Content, &url, &externalID, &published, &fetched, &raw)
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	i.URL = url.String
	i.ExternalID = externalID.String
	i.PublishedAt, _ = time.Parse(timeLayout, published)
	i.FetchedAt, _ = time.Parse(timeLayout, fetched)
	if raw.Valid {
		i.Raw = []byte(raw.String)
	}
	return &i, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

func scanVerdict(row scannable) (*model.Verdict, error) {
	var v model.Verdict
	var processed int
	var result sql.NullInt64
	var response, processedAt, created, updated sql.NullString
	err := row.Scan(&v.ItemID, &v.TaskID, &processed, &result, &response, &processedAt, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("scan verdict: %w", err)
	}
	v.Processed = processed == 1
	if result.Valid {
		r := result.Int64 == 1
		v.Result = &r
	}
	if response.Valid {
		v.Response = []byte(response.String)
	}
	if processedAt.Valid {
		t, _ := time.Parse(timeLayout, processedAt.String)
		v.ProcessedAt = &t
	}
	if created.Valid {
		v.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if updated.Valid {
		v.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	return &v, nil
}
