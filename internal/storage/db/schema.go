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

// schemaStatements 关系层 DDL；队列表的 DDL 在 internal/queue 内维护
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		type INT NOT NULL DEFAULT 0,
		content TEXT NOT NULL DEFAULT '',
		is_archived BOOLEAN NOT NULL DEFAULT false,
		is_recycle BOOLEAN NOT NULL DEFAULT false,
		is_top BOOLEAN NOT NULL DEFAULT false,
		is_share BOOLEAN NOT NULL DEFAULT false,
		sort_order INT NOT NULL DEFAULT 0,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes (owner_id, is_recycle, is_archived)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGSERIAL PRIMARY KEY,
		note_id BIGINT,
		owner_id BIGINT NOT NULL,
		path TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		type TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_note ON attachments (note_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attachments_path ON attachments (path)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		parent BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_owner_name_parent ON tags (owner_id, name, parent)`,
	`CREATE TABLE IF NOT EXISTS tags_to_notes (
		note_id BIGINT NOT NULL,
		tag_id BIGINT NOT NULL,
		PRIMARY KEY (note_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		note_id BIGINT NOT NULL,
		account_id BIGINT,
		guest_name TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_providers (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		provider TEXT NOT NULL,
		base_url TEXT NOT NULL DEFAULT '',
		api_key TEXT NOT NULL DEFAULT '',
		config JSONB NOT NULL DEFAULT '{}'::jsonb,
		sort_order INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_models (
		id BIGSERIAL PRIMARY KEY,
		provider_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		model_key TEXT NOT NULL,
		capabilities JSONB NOT NULL DEFAULT '{}'::jsonb,
		config JSONB NOT NULL DEFAULT '{}'::jsonb,
		sort_order INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_scheduled_tasks (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		prompt TEXT NOT NULL,
		cron TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT true,
		last_run TIMESTAMPTZ,
		last_result JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		expires_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		site_url TEXT NOT NULL,
		site_name TEXT NOT NULL DEFAULT '',
		site_avatar TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		read BOOLEAN NOT NULL DEFAULT false,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		messages JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS configs (
		key TEXT NOT NULL,
		account_id BIGINT NOT NULL DEFAULT 0,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (key, account_id)
	)`,
}
