// Copyright 2026 Quanta ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tape provides the parameterized program representation consumed
// by the batch executor: ordered parameterized operations followed by
// terminal measurements, with trainable-parameter bookkeeping.
package tape

import "github.com/quanta-ml/quanta/internal/tape"

// Tape is an ordered program of parameterized operations plus measurements.
type Tape = tape.Tape

// Operation is a single parameterized operation on a tape.
type Operation = tape.Operation

// Measurement is a terminal measurement specification.
type Measurement = tape.Measurement

// MeasurementKind identifies the statistic a measurement requests.
type MeasurementKind = tape.MeasurementKind

// Supported measurement kinds.
const (
	Expectation = tape.Expectation
	Variance    = tape.Variance
	Probability = tape.Probability
)

// New creates a tape from operations and measurements.
func New(ops []Operation, measurements []Measurement) *Tape {
	return tape.New(ops, measurements)
}

// UnwrapAll unwraps every tape in the batch and returns a single restore
// function covering all of them.
func UnwrapAll(tapes []*Tape) func() {
	return tape.UnwrapAll(tapes)
}
