package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_CaseInsensitiveMatch(t *testing.T) {
	c := NewFilterConfig(FilterOptions{Keywords: []string{"btc"}})
	assert.True(t, c.Passes(&Message{Text: strPtr("Buy BTC now")}))
}

func TestFilter_CaseSensitiveMiss(t *testing.T) {
	c := NewFilterConfig(FilterOptions{Keywords: []string{"btc"}, CaseSensitive: true})
	assert.False(t, c.Passes(&Message{Text: strPtr("Buy BTC now")}))
}

func TestFilter_UpperKeywordFoldedWhenInsensitive(t *testing.T) {
	c := NewFilterConfig(FilterOptions{Keywords: []string{"ETH"}})
	assert.True(t, c.Passes(&Message{Text: strPtr("eth is up")}))
	assert.Equal(t, []string{"eth"}, c.Keywords())
}

func TestFilter_EvaluationOrder(t *testing.T) {
	all := NewFilterConfig(FilterOptions{
		Keywords:       []string{"x"},
		IgnoreMedia:    true,
		IgnoreForwards: true,
		IgnoreBots:     true,
	})
	media := &Media{Kind: MediaPhoto, ID: "1"}

	tests := []struct {
		name string
		cfg  FilterConfig
		msg  *Message
		want FilterDecision
	}{
		{"media first", all, &Message{Text: strPtr("x"), Media: media, Forwarded: true, FromBot: true}, FilterMedia},
		{"forward before bot", all, &Message{Text: strPtr("x"), Forwarded: true, FromBot: true}, FilterForwarded},
		{"bot", all, &Message{Text: strPtr("x"), FromBot: true}, FilterBot},
		{"no keywords", NewFilterConfig(FilterOptions{}), &Message{Text: strPtr("x")}, FilterNoKeyword},
		{"no text", all, &Message{}, FilterNoText},
		{"no match", all, &Message{Text: strPtr("y")}, FilterNoMatch},
		{"pass", all, &Message{Text: strPtr("xyz")}, FilterPass},
		{"media allowed when not ignored", NewFilterConfig(FilterOptions{Keywords: []string{"x"}}), &Message{Text: strPtr("x"), Media: media}, FilterPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Evaluate(tt.msg))
		})
	}
}

func TestFilter_AnyKeywordMatches(t *testing.T) {
	c := NewFilterConfig(FilterOptions{Keywords: []string{"alpha", "beta", ""}})
	assert.True(t, c.Passes(&Message{Text: strPtr("it is beta time")}))
	assert.Len(t, c.Keywords(), 2)
}

func TestFilter_Validate(t *testing.T) {
	assert.ErrorIs(t, NewFilterConfig(FilterOptions{}).Validate(), ErrNoKeywords)
	assert.NoError(t, NewFilterConfig(FilterOptions{Keywords: []string{"a"}}).Validate())
}
