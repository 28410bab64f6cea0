package metrics

import (
	"encoding/json"
	"fmt"
	"time"
)

// Name identifies one metric in a report.
type Name string

const (
	Precision      Name = "Precision Score"
	Recall         Name = "Recall Score"
	Alignment      Name = "Answer-Document Alignment"
	Coherence      Name = "Coherence Score"
	Groundedness   Name = "Groundedness Score"
	Novelty        Name = "Novelty Score"
	RetrievalTime  Name = "RAG Time"
	GenerationTime Name = "Cloud Time"
	TotalTime      Name = "Total Time"
)

// Names returns every metric name in presentation order.
func Names() []Name {
	return []Name{
		Precision,
		Recall,
		Alignment,
		Coherence,
		Groundedness,
		Novelty,
		RetrievalTime,
		GenerationTime,
		TotalTime,
	}
}

type valueKind int

const (
	kindNotApplicable valueKind = iota
	kindScore
	kindDuration
)

// Value is a tagged variant: either a computed score, a computed duration, or
// an explicit not-applicable marker. Not-applicable is distinct from a zero
// score and is never represented by omitting the key.
type Value struct {
	kind    valueKind
	score   float64
	elapsed time.Duration
}

// Score wraps a computed numeric score.
func Score(v float64) Value {
	return Value{kind: kindScore, score: v}
}

// Elapsed wraps a computed duration.
func Elapsed(d time.Duration) Value {
	return Value{kind: kindDuration, elapsed: d}
}

// NotApplicable marks a metric whose required input was absent.
func NotApplicable() Value {
	return Value{kind: kindNotApplicable}
}

// Applicable reports whether the value carries a computed result.
func (v Value) Applicable() bool {
	return v.kind != kindNotApplicable
}

// Score returns the numeric score and whether one was computed.
func (v Value) Score() (float64, bool) {
	return v.score, v.kind == kindScore
}

// Duration returns the duration and whether one was computed.
func (v Value) Duration() (time.Duration, bool) {
	return v.elapsed, v.kind == kindDuration
}

// String renders the value for display; not-applicable renders as "n/a".
func (v Value) String() string {
	switch v.kind {
	case kindScore:
		return fmt.Sprintf("%.3f", v.score)
	case kindDuration:
		return v.elapsed.Round(time.Millisecond).String()
	default:
		return "n/a"
	}
}

// MarshalJSON renders scores as numbers, durations as duration strings, and
// not-applicable as the string "n/a".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindScore:
		return json.Marshal(v.score)
	case kindDuration:
		return json.Marshal(v.elapsed.String())
	default:
		return json.Marshal("n/a")
	}
}

// UnmarshalJSON restores a value from its MarshalJSON form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var score float64
	if err := json.Unmarshal(data, &score); err == nil {
		*v = Score(score)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("metric value must be a number or string: %s", data)
	}
	if text == "n/a" {
		*v = NotApplicable()
		return nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid metric duration %q: %w", text, err)
	}
	*v = Elapsed(d)
	return nil
}

// Report maps every metric name to its value. A report always contains all
// names from Names(); inapplicable metrics carry the NotApplicable variant.
type Report map[Name]Value
