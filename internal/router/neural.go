package router

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/metrics"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

const (
	// DefaultToolThreshold is the probability a tool must exceed to be selected.
	DefaultToolThreshold = 0.5
	// DefaultTemperature softens raw probabilities into display confidences.
	DefaultTemperature = 5.0

	probEpsilon = 1e-7
)

// Prediction is the raw model output for one query. Scores are probabilities.
type Prediction struct {
	ToolScores      map[models.Tool]float64
	IntentionScores map[models.Tool]map[string]float64
}

// NewPrediction returns a prediction with its maps allocated.
func NewPrediction() Prediction {
	return Prediction{
		ToolScores:      make(map[models.Tool]float64),
		IntentionScores: make(map[models.Tool]map[string]float64),
	}
}

// BestIntention returns the highest-scoring intention of t among its known
// intentions. Ties go to the earlier intention in the table; with no scores
// the default intention is returned.
func (p Prediction) BestIntention(t models.Tool) string {
	best := DefaultIntention(t)
	bestScore := math.Inf(-1)
	scores := p.IntentionScores[t]
	for _, i := range intentions[t] {
		s, ok := scores[i]
		if ok && s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// Predictor runs the classification model.
type Predictor interface {
	Predict(ctx context.Context, query string) (Prediction, error)
}

// PredictorSource hands out the predictor, loading it on first use.
type PredictorSource interface {
	Predictor() (Predictor, error)
}

// NeuralOption configures a NeuralBackend.
type NeuralOption func(*NeuralBackend)

// WithToolThreshold sets the selection threshold.
func WithToolThreshold(t float64) NeuralOption {
	return func(b *NeuralBackend) {
		b.threshold = t
	}
}

// WithTemperature sets the confidence temperature. Values <= 0 are ignored.
func WithTemperature(t float64) NeuralOption {
	return func(b *NeuralBackend) {
		if t > 0 {
			b.temperature = t
		}
	}
}

// WithNeuralLogger sets the logger.
func WithNeuralLogger(l *zap.Logger) NeuralOption {
	return func(b *NeuralBackend) {
		b.logger = l
	}
}

// NeuralBackend classifies with a local multi-label model.
type NeuralBackend struct {
	source      PredictorSource
	threshold   float64
	temperature float64
	logger      *zap.Logger
}

// NewNeuralBackend creates a backend that pulls its predictor from source.
func NewNeuralBackend(source PredictorSource, opts ...NeuralOption) *NeuralBackend {
	b := &NeuralBackend{
		source:      source,
		threshold:   DefaultToolThreshold,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Backend implements Router.
func (b *NeuralBackend) Backend() string {
	return BackendNeural
}

// Classify implements Router. Every tool scoring above the threshold is
// selected with its best intention; ToolConfidences holds the calibrated
// confidence of every tool.
func (b *NeuralBackend) Classify(ctx context.Context, query string, _ *QueryContext) (*models.ClassificationResult, error) {
	start := time.Now()
	if b.source == nil {
		return nil, b.fail("load", errors.New("no model configured"))
	}
	p, err := b.source.Predictor()
	if err != nil {
		return nil, b.fail("load", err)
	}
	pred, err := p.Predict(ctx, query)
	if err != nil {
		return nil, b.fail("predict", err)
	}

	res := models.NewClassificationResult(BackendNeural)
	for _, t := range models.AllTools() {
		score := pred.ToolScores[t]
		conf := Calibrate(score, b.temperature)
		res.ToolConfidences[t] = conf
		if score > b.threshold {
			res.ToolsNeeded = append(res.ToolsNeeded, models.ToolSelection{
				Tool:       t,
				Intention:  pred.BestIntention(t),
				Confidence: conf,
				Source:     models.SourceClassifier,
			})
		}
	}
	res.InferenceTime = time.Since(start)

	metrics.ClassifyLatency.WithLabelValues(BackendNeural).Observe(res.InferenceTime.Seconds())
	metrics.ClassifyTotal.WithLabelValues(BackendNeural, "success").Inc()
	b.logger.Debug("query classified",
		zap.String("backend", BackendNeural),
		zap.Int("tools", len(res.ToolsNeeded)),
		zap.Duration("elapsed", res.InferenceTime),
	)
	return res, nil
}

func (b *NeuralBackend) fail(stage string, err error) error {
	metrics.ClassifyTotal.WithLabelValues(BackendNeural, "error").Inc()
	return &ClassificationError{Backend: BackendNeural, Stage: stage, Err: err}
}

// Calibrate maps a probability to sigmoid(logit(p)/temperature).
func Calibrate(p, temperature float64) float64 {
	if temperature <= 0 {
		temperature = 1
	}
	p = math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	logit := math.Log(p / (1 - p))
	return models.ClampConfidence(sigmoid(logit / temperature))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softmax normalizes logits in place into probabilities.
func softmax(logits []float64) {
	if len(logits) == 0 {
		return
	}
	hi := logits[0]
	for _, v := range logits[1:] {
		if v > hi {
			hi = v
		}
	}
	var sum float64
	for i, v := range logits {
		logits[i] = math.Exp(v - hi)
		sum += logits[i]
	}
	for i := range logits {
		logits[i] /= sum
	}
}

// decodeLogits turns the two model heads into a Prediction: a sigmoid per
// tool and a softmax over each tool's intention slice.
func decodeLogits(toolLogits, intentionLogits []float32) Prediction {
	pred := NewPrediction()
	for i, t := range models.AllTools() {
		if i < len(toolLogits) {
			pred.ToolScores[t] = sigmoid(float64(toolLogits[i]))
		}
	}
	offset := 0
	for _, t := range models.AllTools() {
		set := intentions[t]
		if offset+len(set) > len(intentionLogits) {
			break
		}
		probs := make([]float64, len(set))
		for i := range set {
			probs[i] = float64(intentionLogits[offset+i])
		}
		softmax(probs)
		scores := make(map[string]float64, len(set))
		for i, name := range set {
			scores[name] = probs[i]
		}
		pred.IntentionScores[t] = scores
		offset += len(set)
	}
	return pred
}
