package ai

import (
	"fmt"

	"github.com/example/tutorbot/pkg/models"
)

var levelRules = map[models.Level]string{
	models.LevelBasic: `The student is a beginner.
Explain each mistake with a SHORT and SIMPLE sentence using basic vocabulary.
Only flag mistakes that change the meaning or break basic grammar.
Be encouraging.`,
	models.LevelIntermediate: `The student is at an intermediate level.
Explain grammar clearly and mention the rule that was broken.
Flag grammar, vocabulary and punctuation mistakes.
Correct gently.`,
	models.LevelAdvanced: `The student is advanced.
Give detailed explanations including nuance, tone and register.
Flag grammar, vocabulary, punctuation and style issues, including unnatural phrasing and misused idioms.`,
}

// SystemPrompt returns the tutor instructions adapted to the learner's level
func SystemPrompt(level models.Level) string {
	rules, ok := levelRules[level]
	if !ok {
		rules = levelRules[models.LevelBasic]
	}
	return fmt.Sprintf(`You are a friendly English tutor correcting a student's text.
%s

Answer ONLY with a JSON object of this exact shape, no markdown:
{
  "corrected": "<full corrected text>",
  "errors": [
    {"start": <byte offset in the original text>, "end": <exclusive byte offset>,
     "category": "<grammar|spelling|vocabulary|punctuation|style>",
     "explanation": "<short explanation>"}
  ],
  "confidence": <number between 0 and 1>
}
If the text has no mistakes, return it unchanged with an empty errors list.`, rules)
}

// UserPrompt wraps the learner's text for the model
func UserPrompt(text string) string {
	return fmt.Sprintf("Student text:\n%s", text)
}
