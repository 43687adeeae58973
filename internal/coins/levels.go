// Package coins holds the level tiers students climb as their balance grows.
package coins

import (
	"fmt"
	"strings"
)

type Level struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Min   int64  `json:"min"`
	// Next is the threshold of the following tier, zero at the top.
	Next int64 `json:"next,omitempty"`
	// Filled is how many of the ten progress cells are shown as full.
	Filled int `json:"-"`
}

var tiers = []Level{
	{Name: "Diamond", Emoji: "💎", Min: 5000, Filled: 10},
	{Name: "Gold", Emoji: "🥇", Min: 2000, Next: 5000, Filled: 8},
	{Name: "Silver", Emoji: "🥈", Min: 1000, Next: 2000, Filled: 6},
	{Name: "Bronze", Emoji: "🥉", Min: 500, Next: 1000, Filled: 4},
	{Name: "Beginner", Emoji: "🌱", Min: 0, Next: 500, Filled: 2},
}

func LevelFor(balance int64) Level {
	for _, tier := range tiers {
		if balance >= tier.Min {
			return tier
		}
	}
	return tiers[len(tiers)-1]
}

// Title is the emoji and name, e.g. "🥉 Bronze".
func (l Level) Title() string {
	return l.Emoji + " " + l.Name
}

// Bar renders the ten-cell progress text shown in chat, e.g.
// "████░░░░░░ 640/1000".
func (l Level) Bar(balance int64) string {
	cells := strings.Repeat("█", l.Filled) + strings.Repeat("░", 10-l.Filled)
	if l.Next == 0 {
		return cells + " MAX"
	}
	return fmt.Sprintf("%s %d/%d", cells, balance, l.Next)
}

// Format groups thousands with commas.
func Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprint(amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
