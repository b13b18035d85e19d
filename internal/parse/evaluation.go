package parse

import (
	"regexp"
	"strconv"
	"strings"

	"aiblog/internal/textutil"
)

// Score patterns tried in order. Emphasis markers around the label are
// tolerated because evaluators like to bold them.
var scorePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"satisfaction_score", regexp.MustCompile(`(?i)SATISFACTION[_ ]SCORE[*_]*\s*:\s*[*_]*\s*(\d+)`)},
	{"score", regexp.MustCompile(`(?i)\bscore[*_]*\s*:\s*[*_]*\s*(\d+)`)},
	{"rating", regexp.MustCompile(`(?i)\brating[*_]*\s*:\s*[*_]*\s*(\d+)`)},
	{"out_of_ten", regexp.MustCompile(`(\d+)\s*/\s*10\b`)},
}

var leadingIntRe = regexp.MustCompile(`^\s*(\d+)`)

var satisfactoryRe = regexp.MustCompile(`(?i)IS[_ ]SATISFACTORY[*_]*\s*:\s*[*_]*\s*(YES|NO|TRUE|FALSE)\b`)

// PatternSynthesized is reported when no score pattern matched.
const PatternSynthesized = "synthesized"

// Evaluation is the parsed evaluator verdict for one refinement iteration.
type Evaluation struct {
	Score        int    `json:"score"`
	Satisfactory bool   `json:"satisfactory"`
	Synthesized  bool   `json:"synthesized"`
	Pattern      string `json:"pattern"`
	Feedback     string `json:"feedback"`
}

// ParseEvaluation reads SATISFACTION_SCORE and IS_SATISFACTORY from a free
// text evaluator reply. When no score can be found the score becomes
// previousScore+1 so a formatting slip never reads as a stall.
func ParseEvaluation(reply string, previousScore, threshold int) Evaluation {
	eval := Evaluation{Feedback: strings.TrimSpace(reply)}
	fields := textutil.ParseFields(reply)

	if m := leadingIntRe.FindStringSubmatch(fields["SATISFACTION_SCORE"]); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			eval.Score = clampScore(n)
			eval.Pattern = scorePatterns[0].name
		}
	}

	for _, p := range scorePatterns {
		if eval.Pattern != "" {
			break
		}
		m := p.re.FindStringSubmatch(reply)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		eval.Score = clampScore(n)
		eval.Pattern = p.name
		break
	}

	if eval.Pattern == "" {
		eval.Score = clampScore(previousScore + 1)
		eval.Synthesized = true
		eval.Pattern = PatternSynthesized
	}

	if v, ok := flagValue(fields["IS_SATISFACTORY"]); ok {
		eval.Satisfactory = v
	} else if m := satisfactoryRe.FindStringSubmatch(reply); m != nil {
		v := strings.ToUpper(m[1])
		eval.Satisfactory = v == "YES" || v == "TRUE"
	} else {
		eval.Satisfactory = !eval.Synthesized && eval.Score >= threshold
	}

	return eval
}

// flagValue reads a YES/NO/TRUE/FALSE field value, ignoring anything after
// the first word.
func flagValue(v string) (bool, bool) {
	words := strings.Fields(v)
	if len(words) == 0 {
		return false, false
	}
	switch strings.ToUpper(strings.TrimRight(words[0], ".,;!")) {
	case "YES", "TRUE":
		return true, true
	case "NO", "FALSE":
		return false, true
	}
	return false, false
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
