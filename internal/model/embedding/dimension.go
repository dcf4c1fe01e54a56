package embedding

import "strings"

// knownDimensions 常见 embedding 模型的输出维度，按模型名子串匹配。
// 顺序即匹配优先级。
var knownDimensions = []struct {
	substr    string
	dimension int
}{
	{"text-embedding-3-small", 1536},
	{"text-embedding-3-large", 3072},
	{"ada-002", 1536},
	{"bge-m3", 1024},
	{"voyage", 1024},
	{"nomic-embed-text", 768},
	{"all-minilm", 384},
	{"bge-small", 512},
	{"mxbai-embed-large", 1024},
	{"snowflake-arctic-embed", 1024},
	{"text-embedding-004", 768},
}

// GuessDimension 根据模型名推断向量维度，未知模型返回 0
func GuessDimension(model string) int {
	name := strings.ToLower(model)
	for _, entry := range knownDimensions {
		if strings.Contains(name, entry.substr) {
			return entry.dimension
		}
	}
	return 0
}
