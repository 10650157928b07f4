package reply

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Open opens and pings the store database. Supported drivers: postgres, mysql, sqlite.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if _, err := dialectFor(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// один писатель на файл
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Store implements Repo and SettingsRepo over database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewRepo(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:      db,
		dialect: d,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}, nil
}

// Migrate creates the tables when they do not exist.
func (r *Store) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *Store) AppendTurn(ctx context.Context, t *Turn) error {
	r.mu.Lock()
	now := r.now()
	id, err := ulid.New(ulid.Timestamp(now), r.entropy)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	t.ID = id.String()
	t.CreatedAt = now.UnixNano()

	var intent sql.NullString
	if t.Intent != "" {
		intent = sql.NullString{String: string(t.Intent), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO ai_conversations (id, account_id, chat_id, user_id, item_id, role, content, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		t.ID,
		t.AccountID,
		t.ChatID,
		t.UserID,
		t.ItemID,
		string(t.Role),
		t.Content,
		intent,
		t.CreatedAt,
	)
	return err
}

// GetHistory returns the latest limit turns in chronological order.
func (r *Store) GetHistory(ctx context.Context, chatID, accountID string, limit int) ([]Turn, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT id, account_id, chat_id, user_id, item_id, role, content, intent, created_at
		FROM ai_conversations
		WHERE chat_id = ? AND account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), chatID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var role string
		var intent sql.NullString
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.ChatID,
			&t.UserID,
			&t.ItemID,
			&role,
			&t.Content,
			&intent,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Role = Role(role)
		t.Intent = Intent(intent.String)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *Store) CountTurns(ctx context.Context, chatID, accountID string, intent Intent, role Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT COUNT(*) FROM ai_conversations
		WHERE chat_id = ? AND account_id = ? AND intent = ? AND role = ?
	`), chatID, accountID, string(intent), string(role)).Scan(&n)
	return n, err
}

func (r *Store) GetSettings(ctx context.Context, accountID string) (AccountSettings, error) {
	var (
		enabled                sql.NullBool
		apiKey, baseURL, model sql.NullString
		customPrompts          sql.NullString
		maxRounds              sql.NullInt64
		maxPercent, maxAmount  sql.NullFloat64
	)

	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT ai_enabled, api_key, base_url, model_name, custom_prompts,
		       max_bargain_rounds, max_discount_percent, max_discount_amount
		FROM ai_reply_settings
		WHERE account_id = ?
	`), accountID).Scan(
		&enabled,
		&apiKey,
		&baseURL,
		&model,
		&customPrompts,
		&maxRounds,
		&maxPercent,
		&maxAmount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountSettings{}, ErrSettingsNotFound
	}
	if err != nil {
		return AccountSettings{}, err
	}

	s := AccountSettings{
		MaxBargainRounds:   defaultMaxBargainRounds,
		MaxDiscountPercent: defaultMaxDiscountPercent,
		MaxDiscountAmount:  defaultMaxDiscountAmount,
	}
	s.AccountID = accountID
	s.Enabled = enabled.Valid && enabled.Bool
	s.APIKey = apiKey.String
	s.BaseURL = valueOr(baseURL, defaultBaseURL)
	s.Model = valueOr(model, defaultModel)
	if maxRounds.Valid {
		s.MaxBargainRounds = int(maxRounds.Int64)
	}
	if maxPercent.Valid {
		s.MaxDiscountPercent = maxPercent.Float64
	}
	if maxAmount.Valid {
		s.MaxDiscountAmount = maxAmount.Float64
	}

	if customPrompts.Valid && strings.TrimSpace(customPrompts.String) != "" {
		if err := json.Unmarshal([]byte(customPrompts.String), &s.CustomPrompts); err != nil {
			log.Printf("[store] bad custom_prompts account=%s: %v", accountID, err)
			s.CustomPrompts = nil
		}
	}

	return s, nil
}

// SaveSettings inserts or replaces the settings row of an account.
func (r *Store) SaveSettings(ctx context.Context, s AccountSettings) error {
	var prompts sql.NullString
	if len(s.CustomPrompts) > 0 {
		b, err := json.Marshal(s.CustomPrompts)
		if err != nil {
			return err
		}
		prompts = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(r.dialect.upsertSettings),
		s.AccountID,
		s.Enabled,
		s.APIKey,
		s.BaseURL,
		s.Model,
		prompts,
		s.MaxBargainRounds,
		s.MaxDiscountPercent,
		s.MaxDiscountAmount,
	)
	return err
}

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultModel   = "qwen-plus"
)

func valueOr(v sql.NullString, def string) string {
	if v.Valid && strings.TrimSpace(v.String) != "" {
		return v.String
	}
	return def
}

type dialect struct {
	name           string
	numbered       bool // $1, $2 ... instead of ?
	schema         []string
	upsertSettings string
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	case "sqlite":
		return sqliteDialect, nil
	}
	return dialect{}, fmt.Errorf("store: unsupported driver %q", driver)
}

const settingsColumns = `account_id, ai_enabled, api_key, base_url, model_name, custom_prompts,
		max_bargain_rounds, max_discount_percent, max_discount_amount`

const onConflictUpdate = `
		ON CONFLICT (account_id) DO UPDATE SET
			ai_enabled = excluded.ai_enabled,
			api_key = excluded.api_key,
			base_url = excluded.base_url,
			model_name = excluded.model_name,
			custom_prompts = excluded.custom_prompts,
			max_bargain_rounds = excluded.max_bargain_rounds,
			max_discount_percent = excluded.max_discount_percent,
			max_discount_amount = excluded.max_discount_amount`

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: []string{`
		CREATE TABLE IF NOT EXISTS ai_reply_settings (
			account_id TEXT PRIMARY KEY,
			ai_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			api_key TEXT,
			base_url TEXT,
			model_name TEXT,
			custom_prompts TEXT,
			max_bargain_rounds INTEGER,
			max_discount_percent DOUBLE PRECISION,
			max_discount_amount DOUBLE PRECISION
		)`, `
		CREATE TABLE IF NOT EXISTS ai_conversations (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			intent TEXT,
			created_at BIGINT NOT NULL
		)`, `
		CREATE INDEX IF NOT EXISTS idx_ai_conversations_chat
			ON ai_conversations (chat_id, account_id, created_at)`,
	},
	upsertSettings: `INSERT INTO ai_reply_settings (` + settingsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)` + onConflictUpdate,
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS ai_reply_settings (
			account_id TEXT PRIMARY KEY,
			ai_enabled INTEGER NOT NULL DEFAULT 0,
			api_key TEXT,
			base_url TEXT,
			model_name TEXT,
			custom_prompts TEXT,
			max_bargain_rounds INTEGER,
			max_discount_percent REAL,
			max_discount_amount REAL
		)`, `
		CREATE TABLE IF NOT EXISTS ai_conversations (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			intent TEXT,
			created_at INTEGER NOT NULL
		)`, `
		CREATE INDEX IF NOT EXISTS idx_ai_conversations_chat
			ON ai_conversations (chat_id, account_id, created_at)`,
	},
	upsertSettings: `INSERT INTO ai_reply_settings (` + settingsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)` + onConflictUpdate,
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS ai_reply_settings (
			account_id VARCHAR(191) PRIMARY KEY,
			ai_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			api_key TEXT,
			base_url TEXT,
			model_name VARCHAR(191),
			custom_prompts TEXT,
			max_bargain_rounds INT,
			max_discount_percent DOUBLE,
			max_discount_amount DOUBLE
		) DEFAULT CHARSET=utf8mb4`, `
		CREATE TABLE IF NOT EXISTS ai_conversations (
			id CHAR(26) PRIMARY KEY,
			account_id VARCHAR(191) NOT NULL,
			chat_id VARCHAR(191) NOT NULL,
			user_id VARCHAR(191) NOT NULL,
			item_id VARCHAR(191) NOT NULL,
			role VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			intent VARCHAR(16),
			created_at BIGINT NOT NULL,
			INDEX idx_ai_conversations_chat (chat_id, account_id, created_at)
		) DEFAULT CHARSET=utf8mb4`,
	},
	upsertSettings: `INSERT INTO ai_reply_settings (` + settingsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			ai_enabled = VALUES(ai_enabled),
			api_key = VALUES(api_key),
			base_url = VALUES(base_url),
			model_name = VALUES(model_name),
			custom_prompts = VALUES(custom_prompts),
			max_bargain_rounds = VALUES(max_bargain_rounds),
			max_discount_percent = VALUES(max_discount_percent),
			max_discount_amount = VALUES(max_discount_amount)`,
}
