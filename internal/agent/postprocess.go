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

package agent

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"note-platform/internal/embedding"
	"note-platform/internal/notification"
	"note-platform/internal/storage/db"
	"note-platform/pkg/auth"
	"note-platform/pkg/errors"
	"note-platform/pkg/utils"
)

// 后处理模式；config ai.post_processing.mode 的取值
const (
	PostModeComment   = "comment"
	PostModeTags      = "tags"
	PostModeSmartEdit = "smartEdit"
	PostModeCustom    = "custom"
	PostModeBoth      = "both" // comment + tags
)

const (
	defaultCommentPrompt = `Write one short, helpful comment on the note below:
a related thought, a caveat, or a pointer worth following up. Answer with the
comment text only.`
	defaultTagsPrompt = `Suggest up to 3 tags for the note below. Tags may be
hierarchical using "/" (e.g. reading/papers). Answer with a comma separated
list of tags only, no leading #.`
	defaultSmartEditPrompt = `Lightly edit the note below: fix typos and
grammar, keep the author's voice and formatting. Answer with the full edited
note only.`
)

// PostProcessNote 笔记落库后的 AI 后处理。按配置的模式生成评论、
// 打标签、润色或跑自定义提示；逐步执行，单步失败记日志继续，最后
// 发一条汇总通知。未启用或笔记为空时为空操作。
func (s *Service) PostProcessNote(ctx context.Context, noteID int64) error {
	if !s.cfg.AI.PostProcessing.Enabled {
		return nil
	}
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if n == nil || strings.TrimSpace(n.Content) == "" {
		return nil
	}
	// 后台触发时 context 没有 principal；工具一律以笔记 owner 的身份执行
	ctx = auth.WithPrincipal(ctx, auth.Principal{AccountID: n.OwnerID, Role: auth.RoleUser})

	mode := s.cfg.AI.PostProcessing.Mode
	if mode == "" {
		mode = PostModeComment
	}

	var done []string
	step := func(name string, fn func(context.Context, *db.Note) error) {
		if err := fn(ctx, n); err != nil {
			s.log.Warn("post-processing step failed", "step", name, "note", n.ID, "error", err)
			return
		}
		done = append(done, name)
	}

	switch mode {
	case PostModeComment:
		step("comment", s.postComment)
	case PostModeTags:
		step("tags", s.postTags)
	case PostModeSmartEdit:
		step("smartEdit", s.postSmartEdit)
	case PostModeCustom:
		step("custom", s.postCustom)
	case PostModeBoth:
		step("comment", s.postComment)
		step("tags", s.postTags)
	default:
		return errors.Validationf("unknown post-processing mode %q", mode)
	}

	if len(done) > 0 {
		_ = s.notifier.Notify(ctx, n.OwnerID, notification.TypePostProcessing,
			"AI post-processing finished",
			strings.Join(done, ", "), map[string]any{"noteId": n.ID})
	}
	return nil
}

// generateFor 对单篇笔记跑一次无工具生成
func (s *Service) generateFor(ctx context.Context, prompt, content string) (string, error) {
	cm, err := s.builder(ctx)
	if err != nil {
		return "", err
	}
	out, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(content),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}

// generateWithTools 带完整工具集跑一轮 react loop；模型不支持工具
// 调用时降级为纯生成，与 answerStream 同策略。
func (s *Service) generateWithTools(ctx context.Context, prompt, content string) (string, error) {
	cm, err := s.builder(ctx)
	if err != nil {
		return "", err
	}
	msgs := []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(content),
	}
	if _, noTools := cm.(*chatAdapter); !noTools {
		ra, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: cm,
			ToolsConfig:      compose.ToolsNodeConfig{Tools: s.buildTools(ctx)},
			MaxStep:          maxAgentSteps,
		})
		if err == nil {
			out, err := ra.Generate(ctx, msgs)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(out.Content), nil
		}
		if !errors.Is(err, errors.ErrCapabilityUnsupported) {
			return "", err
		}
		s.log.Warn("model has no tool calling, post-processing without tools", "error", err)
	}
	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}

// tagPaths 笔记当前标签的完整 "a/b/c" 路径
func (s *Service) tagPaths(ctx context.Context, noteID int64) []string {
	if s.tags == nil {
		return nil
	}
	ids, err := s.tags.NoteTagIDs(ctx, noteID)
	if err != nil {
		s.log.Warn("list note tags failed", "note", noteID, "error", err)
		return nil
	}
	var paths []string
	for _, id := range ids {
		var parts []string
		for cur, depth := id, 0; cur != 0 && depth < 8; depth++ {
			t, err := s.tags.Get(ctx, cur)
			if err != nil || t == nil {
				break
			}
			parts = append([]string{t.Name}, parts...)
			cur = t.Parent
		}
		if len(parts) > 0 {
			paths = append(paths, strings.Join(parts, "/"))
		}
	}
	return paths
}

func (s *Service) postComment(ctx context.Context, n *db.Note) error {
	if s.comments == nil {
		return errors.ConfigMissingf("comment store not configured")
	}
	prompt := utils.CoalesceString(s.cfg.AI.PostProcessing.CommentPrompt, defaultCommentPrompt)
	text, err := s.generateFor(ctx, prompt, n.Content)
	if err != nil || text == "" {
		return err
	}
	_, err = s.comments.Create(ctx, &db.Comment{
		NoteID:    n.ID,
		GuestName: "Blinko AI",
		Content:   text,
	})
	return err
}

// postTags 自动打标签：标签行落库之外，还把缺失的 hashtag 追加进
// 正文并重建该笔记的向量索引。
func (s *Service) postTags(ctx context.Context, n *db.Note) error {
	if s.tags == nil {
		return errors.ConfigMissingf("tag store not configured")
	}
	prompt := utils.CoalesceString(s.cfg.AI.PostProcessing.TagsPrompt, defaultTagsPrompt)
	text, err := s.generateFor(ctx, prompt, n.Content)
	if err != nil {
		return err
	}
	var hashtags []string
	for _, raw := range strings.Split(text, ",") {
		path := strings.Trim(strings.TrimSpace(raw), "#")
		if path == "" {
			continue
		}
		tagID, err := s.tags.EnsurePath(ctx, n.OwnerID, path)
		if err != nil {
			return err
		}
		if err := s.tags.AttachNote(ctx, tagID, n.ID); err != nil {
			return err
		}
		if !strings.Contains(n.Content, "#"+path) {
			hashtags = append(hashtags, "#"+path)
		}
	}
	if len(hashtags) == 0 {
		return nil
	}
	n.Content = strings.TrimRight(n.Content, " \n") + " " + strings.Join(hashtags, " ")
	n.UpdatedAt = time.Now()
	if _, err := s.notes.Upsert(ctx, n); err != nil {
		return err
	}
	s.reindex(ctx, n, embedding.OpUpdate)
	return nil
}

// postSmartEdit 带工具润色：agent 可直接动笔记，返回的全文作为
// 编辑结果落库。
func (s *Service) postSmartEdit(ctx context.Context, n *db.Note) error {
	prompt := utils.CoalesceString(s.cfg.AI.PostProcessing.SmartEditPrompt, defaultSmartEditPrompt)
	text, err := s.generateWithTools(ctx, prompt, n.Content)
	if err != nil || text == "" || text == n.Content {
		return err
	}
	n.Content = text
	n.UpdatedAt = time.Now()
	if _, err := s.notes.Upsert(ctx, n); err != nil {
		return err
	}
	s.reindex(ctx, n, embedding.OpUpdate)
	return nil
}

// postCustom 自定义模板：{note}/{tags} 替换后交给带工具的 agent，
// 落库动作全部由工具完成，文本产出只留日志。
func (s *Service) postCustom(ctx context.Context, n *db.Note) error {
	tpl := s.cfg.AI.PostProcessing.CustomPrompt
	if tpl == "" {
		return errors.ConfigMissingf("custom post-processing prompt is empty")
	}
	prompt := strings.ReplaceAll(tpl, "{note}", n.Content)
	prompt = strings.ReplaceAll(prompt, "{tags}", strings.Join(s.tagPaths(ctx, n.ID), ", "))
	text, err := s.generateWithTools(ctx, s.systemPrompt(time.Now()), prompt)
	if err != nil {
		return err
	}
	s.log.Debug("custom post-processing finished", "note", n.ID,
		"output", utils.TruncateString(text, 120))
	return nil
}
