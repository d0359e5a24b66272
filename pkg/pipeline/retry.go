package pipeline

import (
	"context"
	"fmt"
	"time"

	"NewsRadar/pkg/llm"
)

// call 调用模型并解析到 out，check 非空时做额外一致性检查，final 表示最后一次尝试；
// 失败时按指数退避重试，上下文取消不重试
func (o *Orchestrator) call(ctx context.Context, stage llm.Stage, payload, out any, check func(final bool) error) error {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := o.opts.BackoffBase << (attempt - 2)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		raw, err := o.llm.Invoke(ctx, stage, payload)
		if err == nil {
			err = decode(raw, out)
		}
		if err == nil && check != nil {
			if cerr := check(attempt == o.opts.MaxAttempts); cerr != nil {
				err = fmt.Errorf("%w: %v", ErrMalformedOutput, cerr)
			}
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		o.logger.Warn("模型调用失败",
			"stage", stage,
			"attempt", attempt,
			"error", err)
	}
	return fmt.Errorf("%s 阶段重试 %d 次后失败: %w", stage, o.opts.MaxAttempts, lastErr)
}
