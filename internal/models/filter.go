package models

import (
	"errors"
	"strings"
)

var ErrNoKeywords = errors.New("no keywords configured")

type FilterDecision string

const (
	FilterPass      FilterDecision = "pass"
	FilterMedia     FilterDecision = "media"
	FilterForwarded FilterDecision = "forwarded"
	FilterBot       FilterDecision = "bot"
	FilterNoKeyword FilterDecision = "no_keywords"
	FilterNoText    FilterDecision = "no_text"
	FilterNoMatch   FilterDecision = "no_match"
)

// FilterConfig is fixed for a run. Keywords are folded at construction when
// matching is case-insensitive.
type FilterConfig struct {
	keywords       []string
	caseSensitive  bool
	ignoreMedia    bool
	ignoreForwards bool
	ignoreBots     bool
}

type FilterOptions struct {
	Keywords       []string
	CaseSensitive  bool
	IgnoreMedia    bool
	IgnoreForwards bool
	IgnoreBots     bool
}

func NewFilterConfig(opts FilterOptions) FilterConfig {
	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k == "" {
			continue
		}
		if !opts.CaseSensitive {
			k = strings.ToLower(k)
		}
		keywords = append(keywords, k)
	}
	return FilterConfig{
		keywords:       keywords,
		caseSensitive:  opts.CaseSensitive,
		ignoreMedia:    opts.IgnoreMedia,
		ignoreForwards: opts.IgnoreForwards,
		ignoreBots:     opts.IgnoreBots,
	}
}

func (c FilterConfig) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

func (c FilterConfig) Validate() error {
	if len(c.keywords) == 0 {
		return ErrNoKeywords
	}
	return nil
}

// Evaluate runs the checks in order and returns the first failing one.
func (c FilterConfig) Evaluate(msg *Message) FilterDecision {
	if c.ignoreMedia && msg.Media != nil {
		return FilterMedia
	}
	if c.ignoreForwards && msg.Forwarded {
		return FilterForwarded
	}
	if c.ignoreBots && msg.FromBot {
		return FilterBot
	}
	if len(c.keywords) == 0 {
		return FilterNoKeyword
	}
	if msg.Text == nil {
		return FilterNoText
	}
	text := *msg.Text
	if !c.caseSensitive {
		text = strings.ToLower(text)
	}
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return FilterPass
		}
	}
	return FilterNoMatch
}

func (c FilterConfig) Passes(msg *Message) bool {
	return c.Evaluate(msg) == FilterPass
}
