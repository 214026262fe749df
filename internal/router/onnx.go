//go:build cgo
// +build cgo

package router

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

var (
	envOnce sync.Once
	envErr  error
)

// ONNXPredictor runs the tool/intention classifier with ONNX Runtime. It
// requires CGO and the onnxruntime shared library. Predict reuses
// pre-allocated tensors and must not run concurrently; ModelLoader queues it
// behind a SerialPredictor.
type ONNXPredictor struct {
	session   *ort.AdvancedSession
	maxTokens int
	tokenizer Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor        *ort.Tensor[int64]
	attentionMaskTensor   *ort.Tensor[int64]
	tokenTypeIDsTensor    *ort.Tensor[int64]
	toolLogitsTensor      *ort.Tensor[float32]
	intentionLogitsTensor *ort.Tensor[float32]
	// closeMu makes Close idempotent. Predict is serialized by the queue.
	closeMu sync.Mutex
}

// NewONNXPredictor loads the model at modelPath. The ONNX Runtime environment
// is initialized once per process.
func NewONNXPredictor(modelPath string, maxTokens int) (*ONNXPredictor, error) {
	envOnce.Do(func() {
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", envErr)
	}
	if maxTokens <= 2 {
		maxTokens = defaultMaxTokens
	}

	tokenizer := &HashTokenizer{VocabSize: defaultVocabSize}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)

	p := &ONNXPredictor{maxTokens: maxTokens, tokenizer: tokenizer}
	var err error
	if p.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if p.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if p.tokenTypeIDsTensor, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	toolCount := int64(len(models.AllTools()))
	if p.toolLogitsTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, toolCount)); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create tool_logits tensor: %w", err)
	}
	intentionCount := int64(len(IntentionLabels()))
	if p.intentionLogitsTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, intentionCount)); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create intention_logits tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"tool_logits", "intention_logits"},
		[]ort.ArbitraryTensor{p.inputIDsTensor, p.attentionMaskTensor, p.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{p.toolLogitsTensor, p.intentionLogitsTensor},
		nil,
	)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	p.session = session
	return p, nil
}

// Predict implements Predictor.
func (p *ONNXPredictor) Predict(ctx context.Context, query string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	if p.session == nil {
		return Prediction{}, ErrPredictorClosed
	}

	inputIDs, attentionMask, tokenTypeIDs := p.tokenizer.Tokenize(query, p.maxTokens)
	copy(p.inputIDsTensor.GetData(), inputIDs)
	copy(p.attentionMaskTensor.GetData(), attentionMask)
	copy(p.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := p.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	return decodeLogits(p.toolLogitsTensor.GetData(), p.intentionLogitsTensor.GetData()), nil
}

// ConcurrencySafe implements ConcurrencyReporter.
func (p *ONNXPredictor) ConcurrencySafe() bool {
	return false
}

// Close destroys the session and tensors.
func (p *ONNXPredictor) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	var err error
	if p.session != nil {
		err = p.session.Destroy()
		p.session = nil
	}
	if p.inputIDsTensor != nil {
		_ = p.inputIDsTensor.Destroy()
		p.inputIDsTensor = nil
	}
	if p.attentionMaskTensor != nil {
		_ = p.attentionMaskTensor.Destroy()
		p.attentionMaskTensor = nil
	}
	if p.tokenTypeIDsTensor != nil {
		_ = p.tokenTypeIDsTensor.Destroy()
		p.tokenTypeIDsTensor = nil
	}
	if p.toolLogitsTensor != nil {
		_ = p.toolLogitsTensor.Destroy()
		p.toolLogitsTensor = nil
	}
	if p.intentionLogitsTensor != nil {
		_ = p.intentionLogitsTensor.Destroy()
		p.intentionLogitsTensor = nil
	}
	return err
}
