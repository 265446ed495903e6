package engine

import "sync/atomic"

// Metrics tracks match outcomes and training-loop activity.
type Metrics struct {
	batches           atomic.Int64
	elementsSeen      atomic.Int64
	elementsDropped   atomic.Int64
	matched           atomic.Int64
	ambiguous         atomic.Int64
	unmatched         atomic.Int64
	questionsAsked    atomic.Int64
	questionsAnswered atomic.Int64
	questionsSkipped  atomic.Int64
	patternsCreated   atomic.Int64
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordBatch records one analyzed screenshot batch.
func (m *Metrics) RecordBatch(seen, dropped int) {
	m.batches.Add(1)
	m.elementsSeen.Add(int64(seen))
	m.elementsDropped.Add(int64(dropped))
}

// RecordOutcome records one element's match outcome.
func (m *Metrics) RecordOutcome(kind string) {
	switch kind {
	case "matched":
		m.matched.Add(1)
	case "ambiguous":
		m.ambiguous.Add(1)
	case "unmatched":
		m.unmatched.Add(1)
	}
}

// RecordQuestionAsked records a generated training question.
func (m *Metrics) RecordQuestionAsked() { m.questionsAsked.Add(1) }

// RecordQuestionAnswered records an integrated answer.
func (m *Metrics) RecordQuestionAnswered() { m.questionsAnswered.Add(1) }

// RecordQuestionSkipped records a dismissed question.
func (m *Metrics) RecordQuestionSkipped() { m.questionsSkipped.Add(1) }

// RecordPatternCreated records a pattern born from an answer.
func (m *Metrics) RecordPatternCreated() { m.patternsCreated.Add(1) }

// Snapshot returns current counters for status reporting.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"batches":            m.batches.Load(),
		"elements_seen":      m.elementsSeen.Load(),
		"elements_dropped":   m.elementsDropped.Load(),
		"matched":            m.matched.Load(),
		"ambiguous":          m.ambiguous.Load(),
		"unmatched":          m.unmatched.Load(),
		"questions_asked":    m.questionsAsked.Load(),
		"questions_answered": m.questionsAnswered.Load(),
		"questions_skipped":  m.questionsSkipped.Load(),
		"patterns_created":   m.patternsCreated.Load(),
	}
}
