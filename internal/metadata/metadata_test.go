package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aiblog/internal/core"
	"aiblog/internal/llm"
	"aiblog/internal/llmtest"
	"aiblog/internal/parse"
)

var categories = []core.Category{{ID: 1, Title: "AI"}, {ID: 2, Title: "Hardware"}}

func TestExtract(t *testing.T) {
	fake := &llmtest.Fake{OnText: llmtest.Sequence(`{"title":"Food Tech","meta_description":"How delivery works.","image_prompt":"A robot courier","tags":["delivery","ai"],"category":2}`)}
	draft := strings.Repeat("word ", 450)

	meta, err := NewExtractor(fake, 0, 0).Extract(context.Background(), draft, categories)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Title != "Food Tech" || meta.Category != 2 || len(meta.Tags) != 2 {
		t.Errorf("Unexpected metadata %+v", meta)
	}
	if meta.ReadTimeMinutes != 3 {
		t.Errorf("Expected read time 3 from 450 words, got %d", meta.ReadTimeMinutes)
	}
	if !strings.Contains(fake.TextPrompts[0], "- 2: Hardware") {
		t.Error("Expected categories in prompt")
	}
	if fake.TextOptions[0].ResponseSchema.Properties["category"].Type != "INTEGER" {
		t.Error("Expected integer category in schema")
	}
}

func TestExtractTruncatesPromptButNotReadTime(t *testing.T) {
	fake := &llmtest.Fake{OnText: llmtest.Sequence(`{"title":"T","meta_description":"D","image_prompt":"P","tags":[],"category":1}`)}
	draft := strings.Repeat("abcd ", 1000)

	meta, err := NewExtractor(fake, 100, 200).Extract(context.Background(), draft, categories)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Count(fake.TextPrompts[0], "abcd") > 20 {
		t.Error("Expected draft to be truncated in the prompt")
	}
	if meta.ReadTimeMinutes != 5 {
		t.Errorf("Expected read time from full draft (5), got %d", meta.ReadTimeMinutes)
	}
}

func TestExtractUnknownCategoryAccepted(t *testing.T) {
	fake := &llmtest.Fake{OnText: llmtest.Sequence(`{"title":"T","meta_description":"D","image_prompt":"P","tags":["x"],"category":99}`)}
	meta, err := NewExtractor(fake, 0, 0).Extract(context.Background(), "short", categories)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.Category != 99 {
		t.Errorf("Expected unknown category kept, got %d", meta.Category)
	}
	if meta.ReadTimeMinutes != 1 {
		t.Errorf("Expected minimum read time 1, got %d", meta.ReadTimeMinutes)
	}
}

func TestExtractFailures(t *testing.T) {
	var perr *parse.ParseError
	_, err := NewExtractor(&llmtest.Fake{OnText: llmtest.Sequence(`{"title":"T","meta_description":"D","image_prompt":"P","tags":[],"category":"2"}`)}, 0, 0).
		Extract(context.Background(), "x", categories)
	if !errors.As(err, &perr) {
		t.Errorf("Expected ParseError for string category, got %v", err)
	}

	_, err = NewExtractor(&llmtest.Fake{OnText: func(string, llm.TextGenerationOptions) (string, error) { return "", llm.ErrEmptyResponse }}, 0, 0).
		Extract(context.Background(), "x", categories)
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("Expected LLM error to propagate, got %v", err)
	}
}
