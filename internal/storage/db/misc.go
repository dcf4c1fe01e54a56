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

// AccountStore 账号存储
type AccountStore interface {
	Create(ctx context.Context, a *Account) (int64, error)
	Get(ctx context.Context, id int64) (*Account, error)
	GetByName(ctx context.Context, name string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
}

// AccountStorePg Postgres 实现的 AccountStore
type AccountStorePg struct {
	pool *pgxpool.Pool
}

func NewAccountStorePg(pool *pgxpool.Pool) *AccountStorePg {
	return &AccountStorePg{pool: pool}
}

func (s *AccountStorePg) Create(ctx context.Context, a *Account) (int64, error) {
	if a == nil {
		return 0, errors.New("nil account")
	}
	if a.Role == "" {
		a.Role = "user"
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, nickname, role) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET nickname = EXCLUDED.nickname
		 RETURNING id`,
		a.Name, a.Nickname, a.Role).Scan(&a.ID)
	return a.ID, err
}

func (s *AccountStorePg) Get(ctx context.Context, id int64) (*Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, nickname, role FROM accounts WHERE id = $1`,
		id).Scan(&a.ID, &a.Name, &a.Nickname, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *AccountStorePg) GetByName(ctx context.Context, name string) (*Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, nickname, role FROM accounts WHERE name = $1`,
		name).Scan(&a.ID, &a.Name, &a.Nickname, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *AccountStorePg) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, nickname, role FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Nickname, &a.Role); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// FollowStore 关注站点存储
type FollowStore interface {
	Create(ctx context.Context, f *Follow) (int64, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*Follow, error)
	// ListAll 全部账号的关注，推荐任务按账号分组拉取
	ListAll(ctx context.Context) ([]*Follow, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, accountID, id int64) error
}

// FollowStorePg Postgres 实现的 FollowStore
type FollowStorePg struct {
	pool *pgxpool.Pool
}

func NewFollowStorePg(pool *pgxpool.Pool) *FollowStorePg {
	return &FollowStorePg{pool: pool}
}

func (s *FollowStorePg) Create(ctx context.Context, f *Follow) (int64, error) {
	if f == nil {
		return 0, errors.New("nil follow")
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO follows (account_id, site_url, site_name, site_avatar, description)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		f.AccountID, f.SiteURL, f.SiteName, f.SiteAvatar, f.Description).Scan(&f.ID)
	return f.ID, err
}

func (s *FollowStorePg) ListByAccount(ctx context.Context, accountID int64) ([]*Follow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, site_url, site_name, site_avatar, description
		 FROM follows WHERE account_id = $1 ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Follow
	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.ID, &f.AccountID, &f.SiteURL, &f.SiteName, &f.SiteAvatar, &f.Description); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *FollowStorePg) ListAll(ctx context.Context) ([]*Follow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, site_url, site_name, site_avatar, description
		 FROM follows ORDER BY account_id ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Follow
	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.ID, &f.AccountID, &f.SiteURL, &f.SiteName, &f.SiteAvatar, &f.Description); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *FollowStorePg) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM follows`).Scan(&n)
	return n, err
}

func (s *FollowStorePg) Delete(ctx context.Context, accountID, id int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM follows WHERE id = $1 AND account_id = $2`, id, accountID)
	return err
}

// NotificationStore 通知存储
// NotificationStore 通知存储；account_id 为 0 的行是系统广播，
// 所有账号都能在列表里看到
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) (int64, error)
	ListByAccount(ctx context.Context, accountID int64, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, accountID, id int64) error
}

// NotificationStorePg Postgres 实现的 NotificationStore
type NotificationStorePg struct {
	pool *pgxpool.Pool
}

func NewNotificationStorePg(pool *pgxpool.Pool) *NotificationStorePg {
	return &NotificationStorePg{pool: pool}
}

func (s *NotificationStorePg) Create(ctx context.Context, n *Notification) (int64, error) {
	if n == nil {
		return 0, errors.New("nil notification")
	}
	meta, _ := json.Marshal(n.Metadata)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (account_id, type, title, content, metadata)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.AccountID, n.Type, n.Title, n.Content, meta).Scan(&n.ID)
	return n.ID, err
}

func (s *NotificationStorePg) ListByAccount(ctx context.Context, accountID int64, unreadOnly bool) ([]*Notification, error) {
	q := `SELECT id, account_id, type, title, content, read, COALESCE(metadata, '{}'::jsonb), created_at
	      FROM notifications WHERE (account_id = $1 OR account_id = 0)`
	if unreadOnly {
		q += ` AND read = false`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		var n Notification
		var meta []byte
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Content, &n.Read, &meta, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &n.Metadata)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *NotificationStorePg) MarkRead(ctx context.Context, accountID, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND account_id = $2`, id, accountID)
	return err
}

// ConversationStore 会话存储
type ConversationStore interface {
	Save(ctx context.Context, c *Conversation) (int64, error)
	Get(ctx context.Context, accountID, id int64) (*Conversation, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*Conversation, error)
	Delete(ctx context.Context, accountID, id int64) error
}

// ConversationStorePg Postgres 实现的 ConversationStore
type ConversationStorePg struct {
	pool *pgxpool.Pool
}

func NewConversationStorePg(pool *pgxpool.Pool) *ConversationStorePg {
	return &ConversationStorePg{pool: pool}
}

func (s *ConversationStorePg) Save(ctx context.Context, c *Conversation) (int64, error) {
	if c == nil {
		return 0, errors.New("nil conversation")
	}
	msgs, _ := json.Marshal(c.Messages)
	if c.ID == 0 {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO conversations (account_id, title, messages)
			 VALUES ($1, $2, $3) RETURNING id`,
			c.AccountID, c.Title, msgs).Scan(&c.ID)
		return c.ID, err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $1, messages = $2, updated_at = now()
		 WHERE id = $3 AND account_id = $4`,
		c.Title, msgs, c.ID, c.AccountID)
	return c.ID, err
}

func (s *ConversationStorePg) Get(ctx context.Context, accountID, id int64) (*Conversation, error) {
	var c Conversation
	var msgs []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, title, messages, created_at, updated_at
		 FROM conversations WHERE id = $1 AND account_id = $2`,
		id, accountID).Scan(&c.ID, &c.AccountID, &c.Title, &msgs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) > 0 {
		_ = json.Unmarshal(msgs, &c.Messages)
	}
	return &c, nil
}

func (s *ConversationStorePg) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, title, messages, created_at, updated_at
		 FROM conversations WHERE account_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Conversation
	for rows.Next() {
		var c Conversation
		var msgs []byte
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Title, &msgs, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			_ = json.Unmarshal(msgs, &c.Messages)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *ConversationStorePg) Delete(ctx context.Context, accountID, id int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND account_id = $2`, id, accountID)
	return err
}

// ConfigStore 键值设置存储；accountID 为 0 表示全局设置
type ConfigStore interface {
	Set(ctx context.Context, accountID int64, key string, value any) error
	Get(ctx context.Context, accountID int64, key string, out any) (bool, error)
	Delete(ctx context.Context, accountID int64, key string) error
}

// ConfigStorePg Postgres 实现的 ConfigStore
type ConfigStorePg struct {
	pool *pgxpool.Pool
}

func NewConfigStorePg(pool *pgxpool.Pool) *ConfigStorePg {
	return &ConfigStorePg{pool: pool}
}

func (s *ConfigStorePg) Set(ctx context.Context, accountID int64, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO configs (key, account_id, value) VALUES ($1, $2, $3)
		 ON CONFLICT (key, account_id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, accountID, raw)
	return err
}

func (s *ConfigStorePg) Get(ctx context.Context, accountID int64, key string, out any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM configs WHERE key = $1 AND account_id = $2`,
		key, accountID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *ConfigStorePg) Delete(ctx context.Context, accountID int64, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM configs WHERE key = $1 AND account_id = $2`, key, accountID)
	return err
}
