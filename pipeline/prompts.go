package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/marqode/hybridrag/rag/document"
)

// Mode shapes prompt framing for the reasoning stages.
type Mode string

const (
	ModeGeneral     Mode = "general"
	ModeEngineering Mode = "engineering"
	ModePolicy      Mode = "policy"
	ModeResearch    Mode = "research"
)

// Modes lists the supported reasoning modes.
func Modes() []Mode {
	return []Mode{ModeGeneral, ModeEngineering, ModePolicy, ModeResearch}
}

func styleHint(mode Mode) string {
	switch mode {
	case ModeEngineering:
		return "Provide architecture, tools, algorithms and implementation steps."
	case ModePolicy:
		return "Provide governance, policy frameworks, rollout strategy, and risk analysis."
	case ModeResearch:
		return "Provide a research-style output: method, evaluation, experiments, contributions."
	default:
		return "Provide a structured general solution."
	}
}

func solverSystemPrompt(mode Mode) string {
	return fmt.Sprintf(
		"You are a solution-generation agent. MODE = %s. %s "+
			"Generate a complete and structured answer.", mode, styleHint(mode))
}

func solverUserPrompt(query, chunkContext, memoryBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task:\n%s\n\n", query)
	if chunkContext != "" {
		fmt.Fprintf(&b, "Document context:\n%s\n\n", chunkContext)
		b.WriteString("Ground your answer in the document context above where it is relevant.\n\n")
	}
	fmt.Fprintf(&b, "Recent system memory:\n%s", memoryBlock)
	return b.String()
}

const evaluatorSystemPrompt = "You are an AI evaluator. " +
	"Given a task and an answer, you must:\n" +
	"1) Summarize the answer in 2-3 lines\n" +
	"2) List strengths\n" +
	"3) List weaknesses\n" +
	"4) Give a numerical score from 0 to 10\n" +
	"5) Suggest concrete improvements.\n\n" +
	"VERY IMPORTANT: At the end, output a separate final line in the format:\n" +
	"SCORE: x.y\n" +
	"Where x.y is just the numeric score (e.g., SCORE: 7.5). " +
	"Do NOT omit the SCORE line."

func evaluatorUserPrompt(query, candidate string) string {
	return fmt.Sprintf("Task:\n%s\n\nCandidate answer:\n%s\n", query, candidate)
}

const improverSystemPrompt = "You are an expert AI improvement agent.\n" +
	"You receive: original solution + critique.\n\n" +
	"Your instructions:\n" +
	"1. Fix weaknesses mentioned\n" +
	"2. Reduce unnecessary content\n" +
	"3. Improve feasibility\n" +
	"4. Increase clarity\n" +
	"5. Improve technical depth\n" +
	"6. Keep concise and professional\n\n" +
	"Return an improved final solution."

func improverUserPrompt(query, solution, critique string) string {
	return fmt.Sprintf(
		"Task:\n%s\n\nOriginal solution:\n%s\n\nCritique:\n%s\n", query, solution, critique)
}

func groundedAnswerPrompt(question, chunkContext string) string {
	return fmt.Sprintf(`You are a precise research assistant.

Answer the user's question using only the context from the document chunks below.
If the context does not contain the answer, say so explicitly.

Context:
%s

Question:
%s

Now provide a clear, detailed, well-structured answer grounded in this context.`,
		chunkContext, question)
}

func chunkContext(chunks []document.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[chunk %d]\n%s", i+1, chunk.Content))
	}
	return strings.Join(parts, "\n\n")
}

var scorePattern = regexp.MustCompile(`SCORE:\s*([0-9]+(?:\.[0-9]+)?)`)

// ExtractScore parses the trailing "SCORE: x.y" line from evaluator output.
// It returns -1 when no score line is present.
func ExtractScore(text string) float64 {
	match := scorePattern.FindStringSubmatch(text)
	if match == nil {
		return -1
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return -1
	}
	return score
}
