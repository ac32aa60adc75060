package redeem

import (
	"context"
	"errors"
	"sync"
)

type fakePage struct {
	mu       sync.Mutex
	present  map[string]bool
	values   map[string]string
	clicked  []string
	submits  []string
	title    string
	body     string
	errText  string
	navErr   error
	clickErr error
	panicOn  string
	closed   int
}

func newFakePage(present ...string) *fakePage {
	p := &fakePage{present: map[string]bool{}, values: map[string]string{}}
	for _, q := range present {
		p.present[q] = true
	}
	return p
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.panicOn == "navigate" {
		panic("tab crashed")
	}
	return p.navErr
}

func (p *fakePage) WaitPresent(ctx context.Context, c Candidate) error {
	p.mu.Lock()
	ok := p.present[c.Query]
	p.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) SetValue(ctx context.Context, c Candidate, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[c.Query] = value
	return nil
}

func (p *fakePage) Click(ctx context.Context, c Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clickErr != nil {
		return p.clickErr
	}
	p.clicked = append(p.clicked, c.Query)
	return nil
}

func (p *fakePage) Submit(ctx context.Context, c Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits = append(p.submits, c.Query)
	return nil
}

func (p *fakePage) Text(ctx context.Context) (string, string, error) {
	return p.title, p.body, nil
}

func (p *fakePage) FirstText(ctx context.Context, c Candidate) (string, bool) {
	return p.errText, p.errText != ""
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

type fakeBrowser struct {
	page *fakePage
	err  error
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

var errBoom = errors.New("boom")
