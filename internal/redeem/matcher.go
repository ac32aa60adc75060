package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoMatch = errors.New("no candidate matched")

type By int

const (
	ByCSS By = iota
	ByXPath
)

// Candidate is one way of finding an element on the portal.
type Candidate struct {
	Query string
	By    By
}

func CSS(q string) Candidate   { return Candidate{Query: q, By: ByCSS} }
func XPath(q string) Candidate { return Candidate{Query: q, By: ByXPath} }

// ButtonText matches a button whose text contains label.
func ButtonText(label string) Candidate {
	return XPath(fmt.Sprintf("//button[contains(text(),'%s')]", label))
}

func (c Candidate) String() string { return c.Query }

// Matcher tries candidates in priority order, each with its own short timeout.
type Matcher struct {
	Name         string
	Candidates   []Candidate
	PerCandidate time.Duration
}

func (m Matcher) First(ctx context.Context, page Page) (Candidate, error) {
	for _, c := range m.Candidates {
		cctx, cancel := context.WithTimeout(ctx, m.PerCandidate)
		err := page.WaitPresent(cctx, c)
		cancel()
		if err == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			return Candidate{}, fmt.Errorf("%s: %w", m.Name, ctx.Err())
		}
	}
	return Candidate{}, fmt.Errorf("%s: %w", m.Name, ErrNoMatch)
}
