package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marqode/hybridrag/metrics"
)

// Record captures one completed pipeline run.
type Record struct {
	ID             string         `json:"id" bson:"_id"`
	Mode           string         `json:"mode" bson:"mode"`
	Question       string         `json:"question" bson:"question"`
	GroundedAnswer string         `json:"grounded_answer,omitempty" bson:"grounded_answer,omitempty"`
	FinalAnswer    string         `json:"final_answer" bson:"final_answer"`
	EvaluatorScore float64        `json:"evaluator_score" bson:"evaluator_score"`
	RetrievalTime  time.Duration  `json:"retrieval_time" bson:"retrieval_time"`
	GenerationTime time.Duration  `json:"generation_time" bson:"generation_time"`
	TotalTime      time.Duration  `json:"total_time" bson:"total_time"`
	WordCount      int            `json:"word_count" bson:"word_count"`
	Metrics        metrics.Report `json:"metrics,omitempty" bson:"-"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
}

// Store persists run records. Implementations must return records from
// Recent in newest-first order.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, n int) ([]*Record, error)
	Clear(ctx context.Context) error
}

// NewID returns a time-based record identifier.
func NewID() string {
	return fmt.Sprintf("run:%d", time.Now().UnixNano())
}

// FormatRecent renders records as a compact text block suitable for
// injection into a prompt as recent system memory.
func FormatRecent(records []*Record) string {
	if len(records) == 0 {
		return "(no prior memory)"
	}
	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fmt.Fprintf(&b, "[%s] Q: %s\nA: %s\n", rec.Mode, rec.Question, truncate(rec.FinalAnswer, 400))
	}
	return strings.TrimSpace(b.String())
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
