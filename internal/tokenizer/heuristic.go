package tokenizer

import "unicode/utf8"

// charactersPerToken approximates the average token width of source code.
const charactersPerToken = 4

type heuristicCounter struct{}

func (heuristicCounter) Name() string {
	return HeuristicModel
}

// CountString returns the rune count divided by charactersPerToken, rounded up.
func (heuristicCounter) CountString(input string) (int, error) {
	runeCount := utf8.RuneCountInString(input)
	return (runeCount + charactersPerToken - 1) / charactersPerToken, nil
}
