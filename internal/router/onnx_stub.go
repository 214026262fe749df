//go:build !cgo
// +build !cgo

package router

import (
	"context"
	"errors"
)

// ONNXPredictor stub type when built without CGO (see onnx.go for real implementation).
type ONNXPredictor struct{}

// NewONNXPredictor returns an error when built without CGO (ONNX not available).
func NewONNXPredictor(_ string, _ int) (*ONNXPredictor, error) {
	return nil, errors.New("ONNX predictor requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Predict always fails without CGO.
func (p *ONNXPredictor) Predict(_ context.Context, _ string) (Prediction, error) {
	return Prediction{}, errors.New("ONNX predictor unavailable")
}

// ConcurrencySafe implements ConcurrencyReporter.
func (p *ONNXPredictor) ConcurrencySafe() bool {
	return false
}

// Close is a no-op.
func (p *ONNXPredictor) Close() error {
	return nil
}
