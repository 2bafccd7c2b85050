// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build onnx

package scoring

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv is the process-wide runtime initialisation.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxScorer runs a binary classifier exported with a single float input of
// shape [batch, NumFeatures]. The positive-class probability is the last
// column of the probability output.
type onnxScorer struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

func newModelScorer(modelPath, libPath string) (Scorer, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 model input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}

	outputName := outputs[len(outputs)-1].Name
	for _, o := range outputs {
		if o.Name == "probabilities" || o.Name == "output_probability" {
			outputName = o.Name
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	_ = opts.SetIntraOpNumThreads(1)
	_ = opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}
	return &onnxScorer{session: session, inputName: inputs[0].Name, outputName: outputName}, nil
}

func (s *onnxScorer) Score(_ context.Context, f Features) (float64, error) {
	in, err := ort.NewTensor(ort.NewShape(1, NumFeatures), f.Float32())
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("onnx: output %q is not a float tensor", s.outputName)
	}
	data := out.GetData()
	if len(data) == 0 {
		return 0, fmt.Errorf("onnx: empty output")
	}
	return float64(data[len(data)-1]), nil
}

func (s *onnxScorer) Name() string { return "onnx" }

func (s *onnxScorer) Close() error {
	return s.session.Destroy()
}
