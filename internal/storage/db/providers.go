// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderStore 供应商与模型配置存储
type ProviderStore interface {
	UpsertProvider(ctx context.Context, p *Provider) (int64, error)
	GetProvider(ctx context.Context, id int64) (*Provider, error)
	ListProviders(ctx context.Context) ([]*Provider, error)
	DeleteProvider(ctx context.Context, id int64) error

	UpsertModel(ctx context.Context, m *Model) (int64, error)
	GetModel(ctx context.Context, id int64) (*Model, error)
	ListModels(ctx context.Context, providerID int64) ([]*Model, error)
	DeleteModel(ctx context.Context, id int64) error
}

// ProviderStorePg Postgres 实现的 ProviderStore
type ProviderStorePg struct {
	pool *pgxpool.Pool
}

func NewProviderStorePg(pool *pgxpool.Pool) *ProviderStorePg {
	return &ProviderStorePg{pool: pool}
}

func (s *ProviderStorePg) UpsertProvider(ctx context.Context, p *Provider) (int64, error) {
	if p == nil {
		return 0, errors.New("nil provider")
	}
	cfg, _ := json.Marshal(p.Config)
	if p.ID == 0 {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO ai_providers (title, provider, base_url, api_key, config, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			p.Title, p.Provider, p.BaseURL, p.APIKey, cfg, p.SortOrder).Scan(&p.ID)
		return p.ID, err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_providers SET title = $1, provider = $2, base_url = $3, api_key = $4,
		 config = $5, sort_order = $6, updated_at = now() WHERE id = $7`,
		p.Title, p.Provider, p.BaseURL, p.APIKey, cfg, p.SortOrder, p.ID)
	return p.ID, err
}

func (s *ProviderStorePg) GetProvider(ctx context.Context, id int64) (*Provider, error) {
	var p Provider
	var cfg []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, provider, COALESCE(base_url, ''), COALESCE(api_key, ''),
		 COALESCE(config, '{}'::jsonb), sort_order FROM ai_providers WHERE id = $1`,
		id).Scan(&p.ID, &p.Title, &p.Provider, &p.BaseURL, &p.APIKey, &cfg, &p.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(cfg) > 0 {
		_ = json.Unmarshal(cfg, &p.Config)
	}
	return &p, nil
}

func (s *ProviderStorePg) ListProviders(ctx context.Context) ([]*Provider, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, provider, COALESCE(base_url, ''), COALESCE(api_key, ''),
		 COALESCE(config, '{}'::jsonb), sort_order FROM ai_providers ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Provider
	for rows.Next() {
		var p Provider
		var cfg []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Provider, &p.BaseURL, &p.APIKey, &cfg, &p.SortOrder); err != nil {
			return nil, err
		}
		if len(cfg) > 0 {
			_ = json.Unmarshal(cfg, &p.Config)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *ProviderStorePg) DeleteProvider(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM ai_models WHERE provider_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM ai_providers WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ProviderStorePg) UpsertModel(ctx context.Context, m *Model) (int64, error) {
	if m == nil {
		return 0, errors.New("nil model")
	}
	caps, _ := json.Marshal(m.Capabilities)
	cfg, _ := json.Marshal(m.Config)
	if m.ID == 0 {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO ai_models (provider_id, title, model_key, capabilities, config, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			m.ProviderID, m.Title, m.ModelKey, caps, cfg, m.SortOrder).Scan(&m.ID)
		return m.ID, err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_models SET provider_id = $1, title = $2, model_key = $3,
		 capabilities = $4, config = $5, sort_order = $6, updated_at = now() WHERE id = $7`,
		m.ProviderID, m.Title, m.ModelKey, caps, cfg, m.SortOrder, m.ID)
	return m.ID, err
}

func (s *ProviderStorePg) GetModel(ctx context.Context, id int64) (*Model, error) {
	var m Model
	var caps, cfg []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, provider_id, title, model_key, COALESCE(capabilities, '{}'::jsonb),
		 COALESCE(config, '{}'::jsonb), sort_order FROM ai_models WHERE id = $1`,
		id).Scan(&m.ID, &m.ProviderID, &m.Title, &m.ModelKey, &caps, &cfg, &m.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(caps) > 0 {
		_ = json.Unmarshal(caps, &m.Capabilities)
	}
	if len(cfg) > 0 {
		_ = json.Unmarshal(cfg, &m.Config)
	}
	return &m, nil
}

func (s *ProviderStorePg) ListModels(ctx context.Context, providerID int64) ([]*Model, error) {
	q := `SELECT id, provider_id, title, model_key, COALESCE(capabilities, '{}'::jsonb),
	      COALESCE(config, '{}'::jsonb), sort_order FROM ai_models`
	args := []any{}
	if providerID > 0 {
		q += ` WHERE provider_id = $1`
		args = append(args, providerID)
	}
	q += ` ORDER BY sort_order ASC, id ASC`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Model
	for rows.Next() {
		var m Model
		var caps, cfg []byte
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.Title, &m.ModelKey, &caps, &cfg, &m.SortOrder); err != nil {
			return nil, err
		}
		if len(caps) > 0 {
			_ = json.Unmarshal(caps, &m.Capabilities)
		}
		if len(cfg) > 0 {
			_ = json.Unmarshal(cfg, &m.Config)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *ProviderStorePg) DeleteModel(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ai_models WHERE id = $1`, id)
	return err
}
