// Package scoring grades quiz submissions.
package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAnswerCount = errors.New("answer count does not match question count")
	ErrAnswerIndex = errors.New("answer questionIndex out of range or repeated")
)

var hundred = decimal.NewFromInt(100)

// Selections with an exponent outside this range cannot be an option index
// and are treated as unanswered without being expanded.
const (
	minSelectionExponent = -9
	maxSelectionExponent = 9
)

// Selection is one submitted answer. JSON numbers and numeric strings are
// accepted; null, booleans and anything else decode to "no answer".
type Selection struct {
	value decimal.Decimal
	set   bool
}

func Select(index int64) Selection {
	return Selection{value: decimal.NewFromInt(index), set: true}
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	*s = Selection{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' || data[0] == 't' || data[0] == 'f' {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
		raw = strings.TrimSpace(text)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	if exp := value.Exponent(); exp < minSelectionExponent || exp > maxSelectionExponent {
		return nil
	}
	*s = Selection{value: value, set: true}
	return nil
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return []byte(s.value.String()), nil
}

// Matches compares numerically, so 1, 1.0 and "1" all select option 1.
func (s Selection) Matches(correct int) bool {
	return s.set && s.value.Equal(decimal.NewFromInt(int64(correct)))
}

// Answers is a submission in either wire shape: a positional list such as
// [1, "2", null] or a list of {"questionIndex": i, "selected": s} objects.
// Objects land at their questionIndex; positions nobody fills stay
// unanswered. A missing questionIndex falls back to the list position, and
// two answers for the same position are rejected.
type Answers []Selection

func (a *Answers) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		*a = nil
		return nil
	}
	out := make(Answers, len(items))
	filled := make([]bool, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			if filled[i] {
				return ErrAnswerIndex
			}
			if err := out[i].UnmarshalJSON(item); err != nil {
				return err
			}
			filled[i] = true
			continue
		}
		var structured struct {
			QuestionIndex *int      `json:"questionIndex"`
			Selected      Selection `json:"selected"`
		}
		if err := json.Unmarshal(item, &structured); err != nil {
			return err
		}
		index := i
		if structured.QuestionIndex != nil {
			index = *structured.QuestionIndex
		}
		if index < 0 || index >= len(out) || filled[index] {
			return ErrAnswerIndex
		}
		out[index] = structured.Selected
		filled[index] = true
	}
	*a = out
	return nil
}

type Result struct {
	Correct int
	Total   int
	Score   int
	Coins   int64
}

// Grade scores selections against the answer key in order.
// Score is round(correct/total*100) and coins round(maxCoins*score/100),
// both rounding half away from zero.
func Grade(key []int, selections []Selection, maxCoins int64) (Result, error) {
	if len(selections) != len(key) {
		return Result{}, ErrAnswerCount
	}
	result := Result{Total: len(key)}
	if result.Total == 0 {
		return result, nil
	}
	for i, correct := range key {
		if selections[i].Matches(correct) {
			result.Correct++
		}
	}
	score := decimal.NewFromInt(int64(result.Correct)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(result.Total))).
		Round(0)
	result.Score = int(score.IntPart())
	result.Coins = decimal.NewFromInt(maxCoins).
		Mul(score).
		Div(hundred).
		Round(0).
		IntPart()
	return result, nil
}
