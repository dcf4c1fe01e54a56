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
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"note-platform/internal/agent/mcp"
)

// federatedTools 连接配置里的 MCP 服务并把远端工具并入工具集。
// 任一服务连不上只记日志跳过，本地工具不受影响。工具名加
// "<server>_" 前缀避免跨服务撞名。
func (s *Service) federatedTools(ctx context.Context) []tool.BaseTool {
	if !s.cfg.MCP.Enabled || len(s.cfg.MCP.Servers) == 0 {
		return nil
	}
	var tools []tool.BaseTool
	for _, srv := range s.cfg.MCP.Servers {
		if srv.Name == "" || srv.URL == "" {
			continue
		}
		client := mcp.New(srv.Name, srv.URL, srv.Token)
		if err := client.Connect(ctx); err != nil {
			s.log.Warn("mcp server unavailable, skipping", "server", srv.Name, "error", err)
			continue
		}
		specs, err := client.ListTools(ctx)
		if err != nil {
			s.log.Warn("mcp list tools failed, skipping", "server", srv.Name, "error", err)
			client.Close()
			continue
		}
		for _, spec := range specs {
			tools = append(tools, &remoteTool{client: client, spec: spec})
		}
		s.log.Info("mcp server federated", "server", srv.Name, "tools", len(specs))
	}
	return tools
}

// remoteTool 把一个远端 MCP 工具包成 eino InvokableTool。远端的
// inputSchema 是自由 JSON Schema，这里不逐字段转译，统一声明一个
// arguments 参数承载 JSON 实参，由远端自行校验。
type remoteTool struct {
	client *mcp.Client
	spec   mcp.ToolSpec
}

func (t *remoteTool) Info(context.Context) (*schema.ToolInfo, error) {
	desc := t.spec.Description
	if len(t.spec.InputSchema) > 0 {
		desc = fmt.Sprintf("%s\nArguments JSON schema: %s", desc, string(t.spec.InputSchema))
	}
	return &schema.ToolInfo{
		Name: fmt.Sprintf("%s_%s", t.client.Name, t.spec.Name),
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"arguments": {
				Type:     schema.String,
				Desc:     "JSON object with the tool arguments, matching the schema in the description",
				Required: true,
			},
		}),
	}, nil
}

func (t *remoteTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var wrapper struct {
		Arguments string `json:"arguments"`
	}
	args := json.RawMessage(argumentsInJSON)
	if err := json.Unmarshal([]byte(argumentsInJSON), &wrapper); err == nil && wrapper.Arguments != "" {
		args = json.RawMessage(wrapper.Arguments)
	}
	return t.client.CallTool(ctx, t.spec.Name, args)
}
