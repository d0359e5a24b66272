package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrInvalidJSON 模型输出不是合法 JSON
var ErrInvalidJSON = errors.New("模型输出不是合法JSON")

// StageInvoker 按阶段组装提示词并调用模型，返回清理后的 JSON
type StageInvoker struct {
	client ChatClient
	logger *slog.Logger
}

// NewStageInvoker 创建阶段调用器，按阶段选择提示词并清洗模型返回的 JSON
func NewStageInvoker(client ChatClient, logger *slog.Logger) *StageInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageInvoker{
		client: client,
		logger: logger.With("component", "llm", "model", client.Name()),
	}
}

// Invoke 调用指定阶段，payload 序列化为 JSON 作为用户消息
func (i *StageInvoker) Invoke(ctx context.Context, stage Stage, payload any) (json.RawMessage, error) {
	prompt, ok := stagePrompts[stage]
	if !ok {
		return nil, fmt.Errorf("未知的分析阶段: %s", stage)
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化阶段输入失败: %w", err)
	}

	start := time.Now()
	content, err := i.client.Chat(ctx, []Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: string(input)},
	})
	if err != nil {
		return nil, fmt.Errorf("调用模型失败(%s): %w", stage, err)
	}

	cleaned := cleanJSONResponse(content)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, truncate(cleaned, 200))
	}

	i.logger.Debug("模型调用完成",
		"stage", stage,
		"prompt_version", promptVersion,
		"elapsed", time.Since(start))
	return json.RawMessage(cleaned), nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 去掉 JSON 前后的说明文字
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
