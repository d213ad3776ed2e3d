package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/queue"
	"github.com/a-marczewski/mindyard/internal/situation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	chatReply   string
	chatErr     error
	jsonPayload string
	jsonErr     error
}

func (f *fakeGenerator) Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

func (f *fakeGenerator) ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) ([]byte, error) {
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return []byte(f.jsonPayload), nil
}

type fakeScheduler struct {
	tasks []queue.Task
	err   error
}

func (f *fakeScheduler) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	task.ID = "task-1"
	f.tasks = append(f.tasks, task)
	return task.ID, nil
}

func newTestGraph(gen llm.Generator, sched queue.Scheduler) *Graph {
	return New(Deps{Gen: gen, Scheduler: sched, Logger: zap.NewNop()})
}

func TestNodeForKnownIntents(t *testing.T) {
	g := newTestGraph(nil, nil)

	for _, it := range intent.All {
		assert.Equal(t, string(it), g.NodeFor(it).Name())
	}
	assert.Equal(t, "probe", g.NodeFor(intent.Probe).Name())
}

func TestNodeForUnknownIntentDefaultsToChat(t *testing.T) {
	g := newTestGraph(nil, nil)

	node := g.NodeFor(intent.Intent("unknown_value"))

	assert.Equal(t, "chat", node.Name())
}

func TestRunWithoutGeneratorUsesFallbacks(t *testing.T) {
	g := newTestGraph(nil, nil)

	result := g.Run(context.Background(), State{
		Input:          "こんにちは",
		Classification: intent.Classification{Intent: intent.Chat},
	})

	assert.Equal(t, "なるほど！いいですね。", result.Reply)
	assert.Nil(t, result.Task)
}

func TestRunBareAcknowledgementReplaced(t *testing.T) {
	gen := &fakeGenerator{chatReply: "記録しました。"}
	g := newTestGraph(gen, nil)

	result := g.Run(context.Background(), State{
		Input:          "承認フローの件、また詰まった",
		Classification: intent.Classification{Intent: intent.Chat},
		Situation:      situation.Tag{Type: situation.SameTopicShortType, ResolvedTopic: "承認フローの遅さ"},
	})

	assert.Equal(t, "承認フローの遅さですね。どのあたりから考えたいですか？", result.Reply)
}

func TestRunBareAcknowledgementWithoutTopic(t *testing.T) {
	gen := &fakeGenerator{chatReply: "承知しました"}
	g := newTestGraph(gen, nil)

	result := g.Run(context.Background(), State{
		Input:          "ふむ",
		Classification: intent.Classification{Intent: intent.Chat},
	})

	assert.Equal(t, "なるほど。もう少し聞かせてもらえますか？", result.Reply)
}

func TestKnowledgeNodeEnqueuesResearchTask(t *testing.T) {
	gen := &fakeGenerator{
		chatReply:   "非同期処理ではイベントループが中心的な役割を持ちます。",
		jsonPayload: `{"requires_deep_research": true, "reason": "最新文献が必要"}`,
	}
	sched := &fakeScheduler{}
	g := newTestGraph(gen, sched)

	result := g.Run(context.Background(), State{
		Input:          "Pythonの非同期処理の最新ベストプラクティスを教えて",
		ThreadID:       "t1",
		Classification: intent.Classification{Intent: intent.Knowledge},
	})

	require.NotNil(t, result.Task)
	assert.Equal(t, queue.TypeDeepResearch, result.Task.Type)
	assert.Equal(t, "t1", result.Task.ThreadID)
	assert.Contains(t, result.Reply, "調査中")
	require.Len(t, sched.tasks, 1)
}

func TestKnowledgeNodeSkipsResearchWhenNotNeeded(t *testing.T) {
	gen := &fakeGenerator{
		chatReply:   "HTTPはリクエストとレスポンスで構成されます。",
		jsonPayload: `{"requires_deep_research": false}`,
	}
	sched := &fakeScheduler{}
	g := newTestGraph(gen, sched)

	result := g.Run(context.Background(), State{
		Input:          "HTTPとは何ですか",
		Classification: intent.Classification{Intent: intent.Knowledge},
	})

	assert.Nil(t, result.Task)
	assert.NotContains(t, result.Reply, "調査中")
	assert.Empty(t, sched.tasks)
}

func TestKnowledgeNodeEnqueueFailureStillReplies(t *testing.T) {
	gen := &fakeGenerator{
		chatReply:   "回答です。",
		jsonPayload: `{"requires_deep_research": true}`,
	}
	sched := &fakeScheduler{err: errors.New("redis down")}
	g := newTestGraph(gen, sched)

	result := g.Run(context.Background(), State{
		Input:          "最新の統計データを教えて",
		Classification: intent.Classification{Intent: intent.Knowledge},
	})

	assert.Nil(t, result.Task)
	assert.Equal(t, "回答です。", result.Reply)
}

func TestProbeNodeFallbackTemplateByHypothesisPair(t *testing.T) {
	gen := &fakeGenerator{chatErr: errors.New("unavailable")}
	g := newTestGraph(gen, nil)

	result := g.Run(context.Background(), State{
		Input: "なんか色々あって疲れた、どうしたらいいのか",
		Classification: intent.Classification{
			Intent:    intent.Probe,
			Primary:   intent.Empathy,
			Secondary: intent.DeepDive,
		},
	})

	assert.Contains(t, result.Reply, "吐き出したい")
}

func TestProbeNodeDefaultTemplate(t *testing.T) {
	g := newTestGraph(nil, nil)

	result := g.Run(context.Background(), State{
		Input: "うーん",
		Classification: intent.Classification{
			Intent:    intent.Probe,
			Primary:   intent.Chat,
			Secondary: intent.StateShare,
		},
	})

	assert.Equal(t, defaultProbeTemplate, result.Reply)
}

func TestSummarizeNodeWithoutHistory(t *testing.T) {
	g := newTestGraph(&fakeGenerator{chatReply: "要約です"}, nil)

	result := g.Run(context.Background(), State{
		Input:          "要約して",
		Classification: intent.Classification{Intent: intent.Summarize},
	})

	assert.Contains(t, result.Reply, "まだ要約できるやり取りがありません")
}

func TestSummarizeNodeFallbackDigest(t *testing.T) {
	gen := &fakeGenerator{chatErr: errors.New("unavailable")}
	g := newTestGraph(gen, nil)

	result := g.Run(context.Background(), State{
		Input:          "要約して",
		Classification: intent.Classification{Intent: intent.Summarize},
		History: []Exchange{
			{User: "承認フローが遅い", Assistant: "どこが詰まっていますか？"},
			{User: "部長の決裁待ちが長い", Assistant: "なるほど"},
		},
	})

	assert.Contains(t, result.Reply, "承認フローが遅い")
	assert.Contains(t, result.Reply, "部長の決裁待ちが長い")
}

func TestGuardBareAcknowledgementPassesNormalReplies(t *testing.T) {
	reply := guardBareAcknowledgement("承認フローの件、整理してみましょう。", "承認フロー")

	assert.Equal(t, "承認フローの件、整理してみましょう。", reply)
}
