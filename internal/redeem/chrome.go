package redeem

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeBrowser starts a fresh headless Chrome per page.
type ChromeBrowser struct {
	Headless bool
	ExecPath string
}

func (b ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(desktopUserAgent),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	// browser lifetime is tied to Close, not to the caller's ctx
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Run tanpa action = start browser. The first Run owns the Chrome process,
	// so it gets tabCtx itself and the caller's deadline is enforced by waiting.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", ctx.Err())
	}
	return &chromePage{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

type chromePage struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// run executes actions on the tab bounded by the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func queryOpt(c Candidate) chromedp.QueryOption {
	if c.By == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitPresent(ctx context.Context, c Candidate) error {
	return p.run(ctx, chromedp.WaitReady(c.Query, queryOpt(c)))
}

func (p *chromePage) SetValue(ctx context.Context, c Candidate, value string) error {
	return p.run(ctx,
		chromedp.Clear(c.Query, queryOpt(c)),
		chromedp.SendKeys(c.Query, value, queryOpt(c)),
	)
}

func (p *chromePage) Click(ctx context.Context, c Candidate) error {
	return p.run(ctx, chromedp.Click(c.Query, queryOpt(c), chromedp.NodeVisible))
}

func (p *chromePage) Submit(ctx context.Context, c Candidate) error {
	return p.run(ctx, chromedp.Submit(c.Query, queryOpt(c)))
}

func (p *chromePage) Text(ctx context.Context) (string, string, error) {
	var title, body string
	err := p.run(ctx,
		chromedp.Title(&title),
		chromedp.Text("body", &body, chromedp.ByQuery),
	)
	return title, body, err
}

func (p *chromePage) FirstText(ctx context.Context, c Candidate) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(c.Query, &nodes, queryOpt(c), chromedp.AtLeast(0))); err != nil || len(nodes) == 0 {
		return "", false
	}
	var txt string
	if err := p.run(ctx, chromedp.Text([]cdp.NodeID{nodes[0].NodeID}, &txt, chromedp.ByNodeID)); err != nil {
		return "", false
	}
	return txt, true
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancelTab()
	p.cancelAlloc()
	return err
}
