// Package postgres implements the engine's repository interfaces against
// PostgreSQL using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
)

// ConfigStore implements campaign.ConfigStore against PostgreSQL.
type ConfigStore struct{ db *sql.DB }

// NewConfigStore creates a Postgres-backed campaign config store.
func NewConfigStore(db *sql.DB) *ConfigStore { return &ConfigStore{db: db} }

const configColumns = `id, slug, active, message_template, discount_percent, rules, last_run_at, created_at, updated_at`

func scanConfig(row interface{ Scan(...interface{}) error }) (*domain.CampaignConfig, error) {
	var c domain.CampaignConfig
	var rulesJSON []byte
	err := row.Scan(&c.ID, &c.Slug, &c.Active, &c.MessageTemplate, &c.DiscountPercent,
		&rulesJSON, &c.LastRunAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &c.Rules); err != nil {
			return nil, fmt.Errorf("decode rules for %s: %w", c.Slug, err)
		}
	}
	return &c, nil
}

func (s *ConfigStore) Get(ctx context.Context, slug domain.CampaignSlug) (*domain.CampaignConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM campaign_configs WHERE slug = $1`, slug)
	c, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return c, nil
}

// List returns all campaign configs, active or not, in slug order.
func (s *ConfigStore) List(ctx context.Context) ([]domain.CampaignConfig, error) {
	return s.list(ctx, `SELECT `+configColumns+` FROM campaign_configs ORDER BY slug`)
}

func (s *ConfigStore) ListActive(ctx context.Context) ([]domain.CampaignConfig, error) {
	return s.list(ctx, `SELECT `+configColumns+` FROM campaign_configs WHERE active = true ORDER BY slug`)
}

func (s *ConfigStore) list(ctx context.Context, query string) ([]domain.CampaignConfig, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ConfigStore) Update(ctx context.Context, slug domain.CampaignSlug, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Active != nil {
		add("active", *u.Active)
	}
	if u.MessageTemplate != nil {
		add("message_template", *u.MessageTemplate)
	}
	if u.DiscountPercent != nil {
		add("discount_percent", *u.DiscountPercent)
	}
	if u.Rules != nil {
		rulesJSON, err := json.Marshal(u.Rules)
		if err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}
		add("rules", rulesJSON)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE campaign_configs SET %s WHERE slug = $%d", joinComma(sets), idx)
	args = append(args, slug)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrConfigNotFound
	}
	return nil
}

// AdvanceLastRun moves last_run_at forward only; an older timestamp is a
// no-op, which keeps the column monotonically non-decreasing under
// concurrent bookkeeping.
func (s *ConfigStore) AdvanceLastRun(ctx context.Context, slug domain.CampaignSlug, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaign_configs SET last_run_at = $2, updated_at = NOW()
		WHERE slug = $1 AND (last_run_at IS NULL OR last_run_at < $2)
	`, slug, t)
	if err != nil {
		return fmt.Errorf("advance last_run_at: %w", err)
	}
	return nil
}

// Seed inserts the three campaign rows if they don't exist yet. Used at
// startup so operators always have something to edit.
func (s *ConfigStore) Seed(ctx context.Context) error {
	for _, slug := range domain.AllSlugs() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO campaign_configs (id, slug, active, message_template, discount_percent, rules)
			VALUES ($1, $2, false, '', 0, '{}')
			ON CONFLICT (slug) DO NOTHING
		`, uuid.New().String(), slug)
		if err != nil {
			return fmt.Errorf("seed config %s: %w", slug, err)
		}
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
