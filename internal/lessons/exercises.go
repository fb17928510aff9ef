package lessons

import (
	"fmt"
	"strings"

	"github.com/example/tutorbot/pkg/models"
)

const blank = "_____"

// BlankExercise builds a fill-in-the-blank exercise from an example sentence.
// If the word does not occur in the sentence the blank is appended.
func BlankExercise(sentence, word, translation string) models.Exercise {
	prompt := fmt.Sprintf("Complete the sentence: %s", replaceWordWithBlank(sentence, word))
	if translation != "" {
		prompt += fmt.Sprintf(" (hint: %s)", translation)
	}
	return models.Exercise{Prompt: prompt, Answer: word}
}

// TranslationExercise asks the learner to use a word in their own sentence
func TranslationExercise(word, translation string) models.Exercise {
	prompt := fmt.Sprintf("Write a sentence in English using the word %q", word)
	if translation != "" {
		prompt += fmt.Sprintf(" (%s)", translation)
	}
	return models.Exercise{Prompt: prompt + "."}
}

// replaceWordWithBlank replaces the first case-insensitive occurrence of word
func replaceWordWithBlank(sentence, word string) string {
	sentence = strings.TrimSpace(sentence)
	word = strings.TrimSpace(word)
	if word == "" {
		return sentence
	}
	idx := strings.Index(strings.ToLower(sentence), strings.ToLower(word))
	if idx < 0 {
		return sentence + " " + blank
	}
	return sentence[:idx] + blank + sentence[idx+len(word):]
}
