// Package refine runs the evaluate/revise loop over a draft and the final
// polish pass that strips meta-commentary.
package refine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"aiblog/internal/llm"
	"aiblog/internal/logger"
	"aiblog/internal/parse"
	"aiblog/internal/textutil"
)

// MaxIterations is the hard ceiling on evaluator calls per run.
const MaxIterations = 5

// DefaultSatisfactionThreshold is used when the evaluator omits IS_SATISFACTORY.
const DefaultSatisfactionThreshold = 8

// StopReason records why the loop ended.
type StopReason string

const (
	StopSatisfied      StopReason = "satisfied"
	StopStalled        StopReason = "stalled"
	StopMaxIterations  StopReason = "max_iterations"
	StopEmptyRevision  StopReason = "empty_revision"
	StopEvaluatorError StopReason = "evaluator_error"
	StopRevisionError  StopReason = "revision_error"
)

// LLMClient defines the LLM operations needed by the refinement loop
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
	SendMessage(ctx context.Context, conv llm.Conversation, message string, options llm.TextGenerationOptions) (string, llm.Conversation, error)
}

// Input is the draft to refine plus context for the evaluator.
type Input struct {
	Draft        string
	Title        string
	TopicContext string
}

// Result is the refined draft and a record of how it got there.
type Result struct {
	Content     string
	Iterations  int
	Revisions   int
	Evaluations []parse.Evaluation
	StopReason  StopReason
	Transcript  llm.Conversation
}

// Loop evaluates and revises a draft until the evaluator is satisfied, the
// score stalls twice in a row, or MaxIterations is reached.
type Loop struct {
	llmClient LLMClient
	threshold int
	log       *slog.Logger
}

// NewLoop creates a refinement loop
func NewLoop(llmClient LLMClient, threshold int) *Loop {
	if threshold < 1 || threshold > 10 {
		threshold = DefaultSatisfactionThreshold
	}
	return &Loop{llmClient: llmClient, threshold: threshold, log: logger.Get().With("stage", "refine")}
}

// Refine always returns a Result whose Content is the input draft or one of
// its revisions.
func (l *Loop) Refine(ctx context.Context, in Input) Result {
	result := Result{Content: in.Draft}
	conv := llm.NewConversation(evaluatorInstruction(in))

	previousScore := 0
	nonImprovements := 0

	for iteration := 1; iteration <= MaxIterations; iteration++ {
		result.Iterations = iteration

		reply, next, err := l.llmClient.SendMessage(ctx, conv, evaluationMessage(iteration, result.Content), llm.TextGenerationOptions{Temperature: 0.2})
		if err != nil {
			l.log.Warn("Evaluator call failed, keeping current draft", "iteration", iteration, "error", err.Error())
			result.StopReason = StopEvaluatorError
			break
		}
		conv = next

		eval := parse.ParseEvaluation(reply, previousScore, l.threshold)
		result.Evaluations = append(result.Evaluations, eval)
		l.log.Info("Draft evaluated",
			"iteration", iteration,
			"score", eval.Score,
			"satisfactory", eval.Satisfactory,
			"pattern", eval.Pattern,
		)

		if eval.Satisfactory {
			result.StopReason = StopSatisfied
			break
		}

		if eval.Score <= previousScore {
			nonImprovements++
		} else {
			nonImprovements = 0
		}
		if nonImprovements >= 2 {
			result.StopReason = StopStalled
			break
		}
		previousScore = eval.Score

		if iteration == MaxIterations {
			result.StopReason = StopMaxIterations
			break
		}

		revised, err := l.llmClient.GenerateText(ctx, revisionPrompt(result.Content, reply), llm.TextGenerationOptions{})
		if err != nil {
			l.log.Warn("Revision failed, keeping current draft", "iteration", iteration, "error", err.Error())
			result.StopReason = StopRevisionError
			break
		}
		revised = textutil.StripCodeFence(revised)
		if revised == "" {
			l.log.Warn("Revision came back empty, keeping last good draft", "iteration", iteration)
			result.StopReason = StopEmptyRevision
			break
		}

		result.Content = revised
		result.Revisions++
	}

	result.Transcript = conv
	l.log.Info("Refinement finished",
		"iterations", result.Iterations,
		"revisions", result.Revisions,
		"stop_reason", string(result.StopReason),
	)
	return result
}

func evaluatorInstruction(in Input) string {
	var sb strings.Builder
	sb.WriteString("You are a demanding blog editor reviewing successive versions of one post")
	if in.Title != "" {
		sb.WriteString(fmt.Sprintf(" titled %q", in.Title))
	}
	sb.WriteString(".\n")
	if strings.TrimSpace(in.TopicContext) != "" {
		sb.WriteString("Context for the post:\n")
		sb.WriteString(in.TopicContext)
		sb.WriteString("\n")
	}
	sb.WriteString(`Judge clarity, accuracy, structure, engagement and flow. Remember your earlier feedback and check whether it was addressed.
Citation markers like [ref:ref-0] are intentional and must stay.

End every review with exactly these two lines:
SATISFACTION_SCORE: <integer 1-10>
IS_SATISFACTORY: <YES or NO>`)
	return sb.String()
}

func evaluationMessage(iteration int, draft string) string {
	return fmt.Sprintf("Iteration %d. Review this version of the post:\n\n---\n%s\n---", iteration, draft)
}

func revisionPrompt(content, feedback string) string {
	return fmt.Sprintf(`Revise the blog post below using the editor's feedback.

**EDITOR FEEDBACK:**
%s

**POST:**
%s

**RULES:**
- Keep the overall structure and headings unless the feedback asks otherwise
- Keep every citation marker such as [ref:ref-0] attached to the claim it supports
- Remove any hyperlinks
- Return only the revised post as raw Markdown. No code fences, no commentary`, feedback, content)
}
