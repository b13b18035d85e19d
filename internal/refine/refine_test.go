package refine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"aiblog/internal/llm"
	"aiblog/internal/llmtest"
)

const original = "## Draft\n\nOriginal text [ref:ref-0]."

// numberedRevisions returns a revision handler producing "revision N".
func numberedRevisions() func(string, llm.TextGenerationOptions) (string, error) {
	n := 0
	return func(string, llm.TextGenerationOptions) (string, error) {
		n++
		return fmt.Sprintf("## Draft\n\nrevision %d", n), nil
	}
}

func TestRefineSatisfiedOnFirstIteration(t *testing.T) {
	fake := &llmtest.Fake{
		OnMessage: llmtest.MessageSequence("Strong post.\nSATISFACTION_SCORE: 9\nIS_SATISFACTORY: YES"),
		OnText:    numberedRevisions(),
	}

	res := NewLoop(fake, 8).Refine(context.Background(), Input{Draft: original, Title: "T"})

	text, _, _, messages := fake.Counts()
	if messages != 1 || text != 0 {
		t.Fatalf("Expected 1 evaluator call and 0 revisions, got %d and %d", messages, text)
	}
	if res.Content != original {
		t.Errorf("Expected original draft back, got %q", res.Content)
	}
	if res.StopReason != StopSatisfied || res.Iterations != 1 {
		t.Errorf("Unexpected result: reason=%s iterations=%d", res.StopReason, res.Iterations)
	}
	if res.Transcript.Len() != 2 {
		t.Errorf("Expected transcript with 2 messages, got %d", res.Transcript.Len())
	}
}

func TestRefineUnparseableScoreProceedsToRevision(t *testing.T) {
	fake := &llmtest.Fake{
		OnMessage: llmtest.MessageSequence(
			"I liked it but the ending drags.",
			"SATISFACTION_SCORE: 9\nIS_SATISFACTORY: YES",
		),
		OnText: numberedRevisions(),
	}

	res := NewLoop(fake, 8).Refine(context.Background(), Input{Draft: original})

	if len(res.Evaluations) != 2 {
		t.Fatalf("Expected 2 evaluations, got %d", len(res.Evaluations))
	}
	first := res.Evaluations[0]
	if first.Score != 1 || !first.Synthesized || first.Satisfactory {
		t.Errorf("Expected synthesized score 1, got %+v", first)
	}
	if text, _, _, _ := fake.Counts(); text != 1 {
		t.Errorf("Expected exactly one revision call, got %d", text)
	}
	if res.Content != "## Draft\n\nrevision 1" || res.StopReason != StopSatisfied {
		t.Errorf("Unexpected result %q / %s", res.Content, res.StopReason)
	}
}

func TestRefineStopConditions(t *testing.T) {
	tests := []struct {
		name           string
		replies        []string
		revise         func(string, llm.TextGenerationOptions) (string, error)
		wantReason     StopReason
		wantIterations int
		wantRevisions  int
		wantContent    string
	}{
		{
			name:           "stalls after two non-improvements",
			replies:        []string{"SATISFACTION_SCORE: 5", "SATISFACTION_SCORE: 5", "SATISFACTION_SCORE: 5"},
			revise:         numberedRevisions(),
			wantReason:     StopStalled,
			wantIterations: 3,
			wantRevisions:  2,
			wantContent:    "## Draft\n\nrevision 2",
		},
		{
			name:           "improvement resets the stall counter",
			replies:        []string{"score: 6", "score: 4", "score: 7", "score: 5", "score: 5"},
			revise:         numberedRevisions(),
			wantReason:     StopStalled,
			wantIterations: 5,
			wantRevisions:  4,
			wantContent:    "## Draft\n\nrevision 4",
		},
		{
			name:           "hits iteration ceiling",
			replies:        []string{"Rating: 1", "Rating: 2", "Rating: 3", "Rating: 4", "Rating: 5"},
			revise:         numberedRevisions(),
			wantReason:     StopMaxIterations,
			wantIterations: MaxIterations,
			wantRevisions:  MaxIterations - 1,
			wantContent:    "## Draft\n\nrevision 4",
		},
		{
			name:           "empty revision keeps last good draft",
			replies:        []string{"SATISFACTION_SCORE: 3"},
			revise:         llmtest.Sequence("  \n "),
			wantReason:     StopEmptyRevision,
			wantIterations: 1,
			wantRevisions:  0,
			wantContent:    original,
		},
		{
			name:           "revision error keeps current draft",
			replies:        []string{"SATISFACTION_SCORE: 3"},
			revise:         func(string, llm.TextGenerationOptions) (string, error) { return "", errors.New("boom") },
			wantReason:     StopRevisionError,
			wantIterations: 1,
			wantContent:    original,
		},
		{
			name:           "fenced revision is unwrapped",
			replies:        []string{"SATISFACTION_SCORE: 3", "SATISFACTION_SCORE: 9\nIS_SATISFACTORY: YES"},
			revise:         llmtest.Sequence("```markdown\n## Better\n```"),
			wantReason:     StopSatisfied,
			wantIterations: 2,
			wantRevisions:  1,
			wantContent:    "## Better",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.Fake{OnMessage: llmtest.MessageSequence(tt.replies...), OnText: tt.revise}
			res := NewLoop(fake, 8).Refine(context.Background(), Input{Draft: original})

			if res.StopReason != tt.wantReason {
				t.Errorf("StopReason = %s, want %s", res.StopReason, tt.wantReason)
			}
			if res.Iterations != tt.wantIterations {
				t.Errorf("Iterations = %d, want %d", res.Iterations, tt.wantIterations)
			}
			if res.Revisions != tt.wantRevisions {
				t.Errorf("Revisions = %d, want %d", res.Revisions, tt.wantRevisions)
			}
			if res.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", res.Content, tt.wantContent)
			}
		})
	}
}

func TestRefineEvaluatorErrorMidway(t *testing.T) {
	calls := 0
	fake := &llmtest.Fake{
		OnMessage: func(llm.Conversation, string) (string, error) {
			calls++
			if calls == 2 {
				return "", llm.ErrEmptyResponse
			}
			return "SATISFACTION_SCORE: 4", nil
		},
		OnText: numberedRevisions(),
	}

	res := NewLoop(fake, 8).Refine(context.Background(), Input{Draft: original})
	if res.StopReason != StopEvaluatorError {
		t.Fatalf("Expected evaluator_error, got %s", res.StopReason)
	}
	if res.Content != "## Draft\n\nrevision 1" {
		t.Errorf("Expected current draft to be kept, got %q", res.Content)
	}
}

func TestRefineKeepsConversation(t *testing.T) {
	var lengths []int
	fake := &llmtest.Fake{
		OnMessage: func(conv llm.Conversation, msg string) (string, error) {
			lengths = append(lengths, conv.Len())
			if !strings.HasPrefix(msg, fmt.Sprintf("Iteration %d.", len(lengths))) {
				t.Errorf("Expected iteration number in message, got %q", msg[:20])
			}
			return fmt.Sprintf("SATISFACTION_SCORE: %d", len(lengths)), nil
		},
		OnText: numberedRevisions(),
	}

	res := NewLoop(fake, 8).Refine(context.Background(), Input{Draft: original, Title: "T", TopicContext: "ctx"})
	want := []int{0, 2, 4, 6, 8}
	for i := range want {
		if lengths[i] != want[i] {
			t.Fatalf("Evaluator saw history lengths %v, want %v", lengths, want)
		}
	}
	if res.Transcript.Len() != 10 {
		t.Errorf("Expected final transcript of 10 messages, got %d", res.Transcript.Len())
	}
	if !strings.Contains(res.Transcript.System, "ctx") {
		t.Error("Expected topic context in the evaluator instruction")
	}
}

// Whatever the evaluator and reviser do, the loop makes at most five
// evaluator calls and returns the original or one of its revisions.
func TestRefineTerminatesForAnyEvaluator(t *testing.T) {
	evaluatorReplies := []string{
		"SATISFACTION_SCORE: %d",
		"**Rating:** %d",
		"I'd say %d/10",
		"no score at all (%d)",
		"SATISFACTION_SCORE: %d\nIS_SATISFACTORY: NO",
		"SATISFACTION_SCORE: %d\nIS_SATISFACTORY: YES",
	}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 300; trial++ {
		produced := map[string]bool{original: true}
		rev := 0
		fake := &llmtest.Fake{
			OnMessage: func(llm.Conversation, string) (string, error) {
				if rng.Intn(20) == 0 {
					return "", errors.New("flaky")
				}
				return fmt.Sprintf(evaluatorReplies[rng.Intn(len(evaluatorReplies))], rng.Intn(14)-2), nil
			},
			OnText: func(string, llm.TextGenerationOptions) (string, error) {
				switch rng.Intn(10) {
				case 0:
					return "", nil
				case 1:
					return "", errors.New("flaky")
				}
				rev++
				out := fmt.Sprintf("revision %d", rev)
				produced[out] = true
				return out, nil
			},
		}

		res := NewLoop(fake, 1+rng.Intn(10)).Refine(context.Background(), Input{Draft: original})

		if _, _, _, messages := fake.Counts(); messages > MaxIterations {
			t.Fatalf("Trial %d: %d evaluator calls", trial, messages)
		}
		if res.Iterations > MaxIterations {
			t.Fatalf("Trial %d: %d iterations", trial, res.Iterations)
		}
		if res.Content == "" || !produced[res.Content] {
			t.Fatalf("Trial %d: unexpected content %q", trial, res.Content)
		}
		if res.StopReason == "" {
			t.Fatalf("Trial %d: no stop reason", trial)
		}
	}
}

func TestPolish(t *testing.T) {
	fake := &llmtest.Fake{OnText: llmtest.Sequence("```markdown\n## Clean\n\nBody [ref:ref-0]\n```")}
	got, err := NewPolisher(fake).Polish(context.Background(), "Here is the revised post:\n## Clean\n\nBody [ref:ref-0]")
	if err != nil {
		t.Fatalf("Polish() error = %v", err)
	}
	if got != "## Clean\n\nBody [ref:ref-0]" {
		t.Errorf("Polish() = %q", got)
	}

	empty, err := NewPolisher(&llmtest.Fake{OnText: llmtest.Sequence("")}).Polish(context.Background(), "x")
	if err != nil || empty != "" {
		t.Errorf("Expected empty result to propagate, got %q, %v", empty, err)
	}

	if _, err := NewPolisher(&llmtest.Fake{}).Polish(context.Background(), "x"); err == nil {
		t.Error("Expected error from unscripted client")
	}
}
