// Package graph dispatches a classified turn to exactly one handler node.
// The routing table is the only way between nodes; no node invokes another.
package graph

import (
	"context"
	"strings"

	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/llm"
	"github.com/a-marczewski/mindyard/internal/queue"
	"github.com/a-marczewski/mindyard/internal/situation"
	"go.uber.org/zap"
)

// Exchange is one prior user/assistant pair, for nodes that read history.
type Exchange struct {
	User      string
	Assistant string
}

// State is the shared per-turn input handed to the selected node.
type State struct {
	Input          string
	ThreadID       string
	UtteranceID    string
	Classification intent.Classification
	Situation      situation.Tag
	// HypothesisIssue is the thread's current structural issue, "" when
	// none exists yet.
	HypothesisIssue string
	History         []Exchange
}

// Result is a node's output: the reply plus an optional background task
// descriptor for the scheduler.
type Result struct {
	Reply string
	Task  *queue.Task
}

// Node is one terminal handler. Handle is invoked exactly once per turn and
// always produces a usable reply; failures degrade to node-local fallbacks.
type Node interface {
	Name() string
	Handle(ctx context.Context, state State) Result
}

// Deps carries the collaborators shared by all nodes.
type Deps struct {
	Gen       llm.Generator
	Scheduler queue.Scheduler
	Logger    *zap.Logger
}

// Graph is the static routing table from intent to node.
type Graph struct {
	nodes  map[intent.Intent]Node
	chat   Node
	logger *zap.Logger
}

// New builds the graph with one node per supported intent.
func New(deps Deps) *Graph {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	chat := &chatNode{deps: deps}
	g := &Graph{
		chat:   chat,
		logger: deps.Logger,
		nodes: map[intent.Intent]Node{
			intent.Chat:       chat,
			intent.Empathy:    &empathyNode{deps: deps},
			intent.Knowledge:  &knowledgeNode{deps: deps},
			intent.DeepDive:   &deepDiveNode{deps: deps},
			intent.Brainstorm: &brainstormNode{deps: deps},
			intent.Summarize:  &summarizeNode{deps: deps},
			intent.StateShare: &stateShareNode{deps: deps},
			intent.Probe:      &probeNode{deps: deps},
		},
	}
	return g
}

// NodeFor resolves the node for an intent; anything outside the table maps
// to the chat node, never an error.
func (g *Graph) NodeFor(it intent.Intent) Node {
	if node, ok := g.nodes[it]; ok {
		return node
	}
	return g.chat
}

// Run invokes the selected node once and applies the bare-acknowledgement
// guard to its reply.
func (g *Graph) Run(ctx context.Context, state State) Result {
	node := g.NodeFor(state.Classification.Intent)
	g.logger.Debug("dispatch",
		zap.String("intent", string(state.Classification.Intent)),
		zap.String("node", node.Name()))

	result := node.Handle(ctx, state)
	result.Reply = guardBareAcknowledgement(result.Reply, state.Situation.ResolvedTopic)
	return result
}

var bareAcknowledgements = map[string]bool{
	"記録しました":  true,
	"受け取りました": true,
	"受領しました":  true,
	"承知しました":  true,
}

// guardBareAcknowledgement replaces a reply that collapses to a bare
// "recorded/noted" acknowledgement with a topic-anchored follow-up, so the
// conversation never dead-ends.
func guardBareAcknowledgement(reply, topic string) string {
	bare := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(reply, "。", ""), ".", ""))
	if !bareAcknowledgements[bare] {
		return reply
	}
	if topic != "" {
		return topic + "ですね。どのあたりから考えたいですか？"
	}
	return "なるほど。もう少し聞かせてもらえますか？"
}
