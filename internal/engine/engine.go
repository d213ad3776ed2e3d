// Package engine orchestrates one conversation turn: the classification
// cascade, the dispatch graph, and the structural hypothesis update.
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/a-marczewski/mindyard/internal/graph"
	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/logging"
	"github.com/a-marczewski/mindyard/internal/queue"
	"github.com/a-marczewski/mindyard/internal/semantic"
	"github.com/a-marczewski/mindyard/internal/situation"
	"github.com/a-marczewski/mindyard/internal/storage"
	"github.com/a-marczewski/mindyard/internal/structural"
	"go.uber.org/zap"
)

// HistoryProvider is the thread-history collaborator.
type HistoryProvider interface {
	Append(ctx context.Context, turn storage.Turn) (string, error)
	SetOutcome(ctx context.Context, id, reply, intent string) error
	RecentTurns(ctx context.Context, threadID, excludeID string, limit int) ([]storage.Turn, error)
}

// HypothesisStore is the per-thread hypothesis collaborator.
type HypothesisStore interface {
	Get(ctx context.Context, threadID string) (structural.Hypothesis, string, error)
	Put(ctx context.Context, threadID string, h structural.Hypothesis, probingQuestion string) error
}

// Request is one incoming utterance.
type Request struct {
	ThreadID string
	Content  string
	// ModeOverride forces the intent, skipping classification (Mode
	// Switcher). Unknown values route to chat.
	ModeOverride string
}

// Response is the per-turn result handed to the transport layer.
type Response struct {
	Intent     intent.Intent
	Confidence float64
	Label      string
	Method     string
	Reply      string
	Situation  situation.Tag
	// Task is set when a handler kicked off background work.
	Task *queue.Task
}

// Options wires an Engine. Router, Scheduler, Threads, and Hypotheses may
// be nil; every absence degrades to the corresponding fallback behavior.
type Options struct {
	Router     *semantic.Router
	Classifier *intent.Classifier
	Structural *structural.Engine
	Graph      *graph.Graph
	Threads    HistoryProvider
	Hypotheses HypothesisStore
	Scheduler  queue.Scheduler

	ProbeConfidence float64
	HistoryLimit    int
	// DeferStructuralUpdates schedules the hypothesis update through the
	// task queue instead of running it in the request flow. The next
	// turn's routing may then observe the previous, not-yet-updated
	// hypothesis until the worker has drained the task.
	DeferStructuralUpdates bool

	Logger *zap.Logger
}

// Engine is the per-turn orchestrator. Turn never fails: every external
// error degrades to the deterministic fallback for that stage only.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ProbeConfidence <= 0 {
		opts.ProbeConfidence = 0.6
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &Engine{opts: opts, logger: opts.Logger}
}

// Turn processes one utterance end to end and always returns a usable
// response.
func (e *Engine) Turn(ctx context.Context, req Request) Response {
	content := strings.TrimSpace(req.Content)

	utteranceID := e.appendTurn(ctx, req.ThreadID, content)
	previous, previousQuestion := e.loadHypothesis(ctx, req.ThreadID)
	history := e.loadHistory(ctx, req.ThreadID, utteranceID)

	previousTopic := ""
	if previous != nil {
		previousTopic = previous.Issue
	}
	tag := situation.Classify(content, previousTopic)

	clf := e.classify(ctx, content, history, req.ModeOverride)

	state := graph.State{
		Input:          content,
		ThreadID:       req.ThreadID,
		UtteranceID:    utteranceID,
		Classification: clf,
		Situation:      tag,
		History:        toExchanges(history),
	}
	if previous != nil {
		state.HypothesisIssue = previous.Issue
	}
	result := e.opts.Graph.Run(ctx, state)

	if utteranceID != "" && e.opts.Threads != nil {
		if err := e.opts.Threads.SetOutcome(ctx, utteranceID, result.Reply, string(clf.Intent)); err != nil {
			e.logger.Warn("failed to record reply",
				zap.String("stage", "persist"),
				zap.Error(err))
		}
	}

	e.updateHypothesis(ctx, req.ThreadID, utteranceID, content, history, previous, previousQuestion)

	return Response{
		Intent:     clf.Intent,
		Confidence: clf.Confidence,
		Label:      intent.DisplayLabel(clf.Intent),
		Method:     clf.Method,
		Reply:      result.Reply,
		Situation:  tag,
		Task:       result.Task,
	}
}

// Route runs only the classification side of a turn: situation tagging and
// the intent cascade, without generating a reply or writing any state.
func (e *Engine) Route(ctx context.Context, req Request) Response {
	content := strings.TrimSpace(req.Content)

	previous, _ := e.loadHypothesis(ctx, req.ThreadID)
	history := e.loadHistory(ctx, req.ThreadID, "")

	previousTopic := ""
	if previous != nil {
		previousTopic = previous.Issue
	}
	tag := situation.Classify(content, previousTopic)
	clf := e.classify(ctx, content, history, req.ModeOverride)

	return Response{
		Intent:     clf.Intent,
		Confidence: clf.Confidence,
		Label:      intent.DisplayLabel(clf.Intent),
		Method:     clf.Method,
		Situation:  tag,
	}
}

func (e *Engine) appendTurn(ctx context.Context, threadID, content string) string {
	if e.opts.Threads == nil {
		return ""
	}
	id, err := e.opts.Threads.Append(ctx, storage.Turn{ThreadID: threadID, Content: content})
	if err != nil {
		e.logger.Warn("failed to append turn, continuing without history",
			zap.String("stage", "persist"),
			zap.String("input", logging.Truncate(content, 80)),
			zap.Error(err))
		return ""
	}
	return id
}

// loadHypothesis treats every store failure as "no prior hypothesis": the
// turn proceeds as a first turn.
func (e *Engine) loadHypothesis(ctx context.Context, threadID string) (*structural.Hypothesis, string) {
	if e.opts.Hypotheses == nil {
		return nil, ""
	}
	h, question, err := e.opts.Hypotheses.Get(ctx, threadID)
	if err != nil {
		if !errors.Is(err, storage.ErrNoHypothesis) {
			e.logger.Warn("hypothesis load failed, treating as first turn",
				zap.String("stage", "structural"),
				zap.Error(err))
		}
		return nil, ""
	}
	return &h, question
}

func (e *Engine) loadHistory(ctx context.Context, threadID, excludeID string) []storage.Turn {
	if e.opts.Threads == nil {
		return nil
	}
	turns, err := e.opts.Threads.RecentTurns(ctx, threadID, excludeID, e.opts.HistoryLimit)
	if err != nil {
		e.logger.Warn("history load failed, proceeding without it",
			zap.String("stage", "history"),
			zap.Error(err))
		return nil
	}
	return turns
}

// classify runs the three-stage cascade: mode override, then the semantic
// short-circuit, then the hypothesis classifier with the probe threshold.
func (e *Engine) classify(ctx context.Context, content string, history []storage.Turn, override string) intent.Classification {
	if override != "" {
		forced := intent.Parse(override)
		if !intent.Known(override) {
			e.logger.Warn("unknown mode override, defaulting to chat",
				zap.String("stage", "router"),
				zap.String("override", override))
		}
		return intent.Classification{
			Intent:             forced,
			Confidence:         1.0,
			Primary:            forced,
			PrimaryConfidence:  1.0,
			PreviousEvaluation: intent.EvalNone,
			Method:             "override",
		}
	}

	if e.opts.Router != nil {
		if clf, err := e.opts.Router.Route(ctx, content); err == nil {
			return clf
		}
	}

	var prev *intent.PreviousContext
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.Intent != "" || last.Reply != "" {
			prev = &intent.PreviousContext{
				Intent:   intent.Parse(last.Intent),
				Response: last.Reply,
			}
		}
	}

	clf := e.opts.Classifier.Classify(ctx, content, prev)
	if clf.Intent != intent.Probe && (clf.NeedsProbing || clf.PrimaryConfidence < e.opts.ProbeConfidence) {
		clf.NeedsProbing = true
		clf.Intent = intent.Probe
	}
	return clf
}

// updateHypothesis runs the structural engine synchronously, or schedules it
// on the task queue when deferred updates are enabled.
func (e *Engine) updateHypothesis(ctx context.Context, threadID, utteranceID, content string, history []storage.Turn, previous *structural.Hypothesis, previousQuestion string) {
	if e.opts.Structural == nil || e.opts.Hypotheses == nil {
		return
	}

	if e.opts.DeferStructuralUpdates && e.opts.Scheduler != nil {
		_, err := e.opts.Scheduler.Enqueue(ctx, queue.Task{
			Type:        queue.TypeStructuralUpdate,
			ThreadID:    threadID,
			UtteranceID: utteranceID,
			Query:       content,
		})
		if err != nil {
			e.logger.Warn("failed to defer structural update, running inline",
				zap.String("stage", "structural"),
				zap.Error(err))
			e.applyStructuralUpdate(ctx, threadID, content, history, previous, previousQuestion)
		}
		return
	}

	e.applyStructuralUpdate(ctx, threadID, content, history, previous, previousQuestion)
}

func (e *Engine) applyStructuralUpdate(ctx context.Context, threadID, content string, history []storage.Turn, previous *structural.Hypothesis, previousQuestion string) {
	update := e.opts.Structural.Analyze(ctx, structural.Input{
		Content:          content,
		History:          turnContents(history),
		Previous:         previous,
		EmotionIntensity: structural.EmotionIntensity(content),
		PreviousQuestion: previousQuestion,
	})

	// A cancelled request must not write a partial hypothesis.
	if ctx.Err() != nil {
		return
	}

	if err := e.opts.Hypotheses.Put(ctx, threadID, update.Hypothesis, update.ProbingQuestion); err != nil {
		e.logger.Warn("hypothesis write failed",
			zap.String("stage", "structural"),
			zap.Error(err))
	}
}

// StructuralTaskHandler returns the worker handler that performs deferred
// hypothesis updates.
func (e *Engine) StructuralTaskHandler() queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		previous, previousQuestion := e.loadHypothesis(ctx, task.ThreadID)
		history := e.loadHistory(ctx, task.ThreadID, task.UtteranceID)
		e.applyStructuralUpdate(ctx, task.ThreadID, task.Query, history, previous, previousQuestion)
		return nil
	}
}

func toExchanges(turns []storage.Turn) []graph.Exchange {
	exchanges := make([]graph.Exchange, 0, len(turns))
	for _, t := range turns {
		exchanges = append(exchanges, graph.Exchange{User: t.Content, Assistant: t.Reply})
	}
	return exchanges
}

func turnContents(turns []storage.Turn) []string {
	contents := make([]string, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, t.Content)
	}
	return contents
}
