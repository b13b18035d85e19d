package parse

import "testing"

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name             string
		reply            string
		previous         int
		wantScore        int
		wantSatisfactory bool
		wantSynthesized  bool
		wantPattern      string
	}{
		{
			name:             "primary with flag",
			reply:            "Good work.\nSATISFACTION_SCORE: 9\nIS_SATISFACTORY: YES",
			wantScore:        9,
			wantSatisfactory: true,
			wantPattern:      "satisfaction_score",
		},
		{
			name:        "bold primary with negative flag",
			reply:       "**SATISFACTION_SCORE:** 9\n**IS_SATISFACTORY:** NO",
			wantScore:   9,
			wantPattern: "satisfaction_score",
		},
		{
			name:        "plain score fallback",
			reply:       "Overall score: 6. Tighten the intro.",
			wantScore:   6,
			wantPattern: "score",
		},
		{
			name:        "rating fallback",
			reply:       "Rating: 7\nNeeds more examples.",
			wantScore:   7,
			wantPattern: "rating",
		},
		{
			name:             "out of ten fallback meets threshold",
			reply:            "I would give this 8/10.",
			wantScore:        8,
			wantSatisfactory: true,
			wantPattern:      "out_of_ten",
		},
		{
			name:             "flag true",
			reply:            "SATISFACTION_SCORE: 5\nIS_SATISFACTORY: true",
			wantScore:        5,
			wantSatisfactory: true,
			wantPattern:      "satisfaction_score",
		},
		{
			name:            "nothing parseable on first iteration",
			reply:           "The draft reads well but the conclusion is weak.",
			previous:        0,
			wantScore:       1,
			wantSynthesized: true,
			wantPattern:     PatternSynthesized,
		},
		{
			name:            "synthesized above threshold is not satisfactory",
			reply:           "No numbers here.",
			previous:        9,
			wantScore:       10,
			wantSynthesized: true,
			wantPattern:     PatternSynthesized,
		},
		{
			name:        "clamped high",
			reply:       "SATISFACTION_SCORE: 42\nIS_SATISFACTORY: NO",
			wantScore:   10,
			wantPattern: "satisfaction_score",
		},
		{
			name:        "clamped low",
			reply:       "SATISFACTION_SCORE: 0",
			wantScore:   1,
			wantPattern: "satisfaction_score",
		},
		{
			name:             "bulleted label fields",
			reply:            "- **Satisfaction Score**: 8/10\n- **Is Satisfactory**: Yes, ship it.",
			wantScore:        8,
			wantSatisfactory: true,
			wantPattern:      "satisfaction_score",
		},
		{
			name:        "field flag overrides threshold",
			reply:       "SATISFACTION_SCORE: 9\nIS_SATISFACTORY: No. The ending is rushed.",
			wantScore:   9,
			wantPattern: "satisfaction_score",
		},
		{
			name:             "unreadable field falls back to regex",
			reply:            "SATISFACTION_SCORE: n/a\nI'd say 8/10 overall.",
			wantScore:        8,
			wantSatisfactory: true,
			wantPattern:      "out_of_ten",
		},
		{
			name:        "primary beats fallback",
			reply:       "Rating: 2\nSATISFACTION_SCORE: 7",
			wantScore:   7,
			wantPattern: "satisfaction_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEvaluation(tt.reply, tt.previous, 8)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Satisfactory != tt.wantSatisfactory {
				t.Errorf("Satisfactory = %v, want %v", got.Satisfactory, tt.wantSatisfactory)
			}
			if got.Synthesized != tt.wantSynthesized {
				t.Errorf("Synthesized = %v, want %v", got.Synthesized, tt.wantSynthesized)
			}
			if got.Pattern != tt.wantPattern {
				t.Errorf("Pattern = %q, want %q", got.Pattern, tt.wantPattern)
			}
			if got.Feedback == "" {
				t.Error("Expected feedback text to be kept")
			}
		})
	}
}
