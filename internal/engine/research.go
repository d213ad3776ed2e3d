package engine

import (
	"context"
	"fmt"

	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/logging"
	"github.com/a-marczewski/mindyard/internal/queue"
	"go.uber.org/zap"
)

const researchSystemPrompt = `あなたはリサーチアシスタントです。与えられた質問について、
裏付けとなる情報・データ・複数の観点を整理し、箇条書き中心の調査メモを日本語で作成してください。
確信が持てない点は「要確認」と明記してください。`

const researchNoteFormat = "\n\n【追加調査の結果】\n%s"

// ResearchNoteWriter appends background research findings to the turn that
// triggered them.
type ResearchNoteWriter interface {
	AppendResearchNote(ctx context.Context, id, note string) error
}

// ResearchTaskHandler returns the worker handler for deep-research tasks:
// the deep-tier model produces a research memo, which is attached to the
// originating turn's reply.
func ResearchTaskHandler(gen llm.Generator, notes ResearchNoteWriter, logger *zap.Logger) queue.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task queue.Task) error {
		if gen == nil || notes == nil || task.UtteranceID == "" {
			return nil
		}
		memo, err := gen.Chat(ctx, []llm.Message{
			{Role: "system", Content: researchSystemPrompt},
			{Role: "user", Content: task.Query},
		}, 0.3)
		if err != nil {
			return fmt.Errorf("research generation: %w", err)
		}
		if memo == "" {
			return nil
		}
		if err := notes.AppendResearchNote(ctx, task.UtteranceID, fmt.Sprintf(researchNoteFormat, memo)); err != nil {
			return fmt.Errorf("attach research note: %w", err)
		}
		logger.Info("research memo attached",
			zap.String("task_id", task.ID),
			zap.String("utterance_id", task.UtteranceID),
			zap.String("query", logging.Truncate(task.Query, 80)))
		return nil
	}
}
