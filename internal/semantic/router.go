package semantic

import (
	"context"
	"errors"
	"sync/atomic"
	"unicode/utf8"

	"github.com/a-marczewski/mindyard/internal/intent"
	"github.com/a-marczewski/mindyard/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoConfidentMatch means no anchor set cleared the similarity threshold
// and the caller should fall through to the hypothesis classifier.
var ErrNoConfidentMatch = errors.New("no confident anchor match")

// anchorPhrases are the curated reference phrases per fast-path category.
// Maintained independently from the keyword fallback lists in the intent
// package; near the length cutoff the two routers can disagree.
var anchorPhrases = map[intent.Intent][]string{
	intent.Summarize: {
		"要約して", "まとめて", "要点を教えて", "サマリをお願い", "振り返りたい",
	},
	intent.DeepDive: {
		"原因を分析したい", "問題を深掘りしたい", "課題を整理したい", "どうすれば解決できる",
	},
	intent.Knowledge: {
		"教えて", "やり方を知りたい", "とは何ですか", "違いを教えて",
	},
	intent.Empathy: {
		"つらい", "しんどい", "疲れた", "聞いてほしい", "最悪だった",
	},
	intent.StateShare: {
		"眠い", "お腹すいた", "今起きた", "だるい", "気分がいい",
	},
	intent.Chat: {
		"こんにちは", "おはよう", "ひさしぶり", "今日どうだった",
	},
}

// anchorOrder fixes the comparison order so equal-similarity ties resolve
// deterministically.
var anchorOrder = []intent.Intent{
	intent.Summarize, intent.DeepDive, intent.Knowledge,
	intent.Empathy, intent.StateShare, intent.Chat,
}

// Router short-circuits classification for short utterances by comparing
// their embedding against cached anchor embeddings. Anchor vectors are
// computed once per process, lazily on first use; a racing recomputation
// produces the same vectors, so last-writer-wins is safe.
type Router struct {
	embedder  Embedder
	threshold float64
	maxRunes  int
	logger    *zap.Logger

	group   singleflight.Group
	anchors atomic.Value // map[intent.Intent][][]float32
}

// NewRouter builds a Router. threshold is the minimum cosine similarity to
// accept; maxRunes is the utterance length cutoff above which the router
// declines.
func NewRouter(embedder Embedder, threshold float64, maxRunes int, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		embedder:  embedder,
		threshold: threshold,
		maxRunes:  maxRunes,
		logger:    logger,
	}
}

// Route classifies a short utterance against the anchor sets. It returns
// ErrNoConfidentMatch when the utterance is too long, no anchor set clears
// the threshold, or the embedding provider fails; provider errors are
// logged, never surfaced.
func (r *Router) Route(ctx context.Context, input string) (intent.Classification, error) {
	if r.embedder == nil || utf8.RuneCountInString(input) > r.maxRunes {
		return intent.Classification{}, ErrNoConfidentMatch
	}

	anchors, err := r.ensureAnchors(ctx)
	if err != nil {
		r.logger.Warn("anchor embedding init failed, skipping semantic route",
			zap.Error(err))
		return intent.Classification{}, ErrNoConfidentMatch
	}

	vec, err := r.embedder.Embed(ctx, input)
	if err != nil {
		r.logger.Warn("utterance embedding failed, skipping semantic route",
			zap.String("input", logging.Truncate(input, 80)),
			zap.Error(err))
		return intent.Classification{}, ErrNoConfidentMatch
	}

	var best intent.Intent
	var bestSim float64
	for _, candidate := range anchorOrder {
		for _, anchor := range anchors[candidate] {
			if sim := CosineSimilarity(vec, anchor); sim > bestSim {
				best = candidate
				bestSim = sim
			}
		}
	}

	if best == "" || bestSim < r.threshold {
		return intent.Classification{}, ErrNoConfidentMatch
	}

	r.logger.Debug("semantic route hit",
		zap.String("intent", string(best)),
		zap.Float64("similarity", bestSim))

	return intent.Classification{
		Intent:             best,
		Confidence:         bestSim,
		Primary:            best,
		PrimaryConfidence:  bestSim,
		PreviousEvaluation: intent.EvalNone,
		Method:             "semantic_router",
	}, nil
}

// ensureAnchors returns the cached anchor vectors, computing them exactly
// once per process. Concurrent first calls collapse into one computation
// via singleflight; the result is deterministic for a given provider.
func (r *Router) ensureAnchors(ctx context.Context) (map[intent.Intent][][]float32, error) {
	if cached := r.anchors.Load(); cached != nil {
		return cached.(map[intent.Intent][][]float32), nil
	}

	result, err, _ := r.group.Do("anchors", func() (any, error) {
		if cached := r.anchors.Load(); cached != nil {
			return cached, nil
		}

		anchors := make(map[intent.Intent][][]float32, len(anchorPhrases))
		for _, candidate := range anchorOrder {
			phrases := anchorPhrases[candidate]
			vectors, err := r.embedder.EmbedBatch(ctx, phrases)
			if err != nil {
				return nil, err
			}
			anchors[candidate] = vectors
		}
		r.anchors.Store(anchors)
		return anchors, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[intent.Intent][][]float32), nil
}
