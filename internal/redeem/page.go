package redeem

import "context"

// Page is one isolated browser session on the portal.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitPresent returns nil once the element exists, or an error when ctx expires first.
	WaitPresent(ctx context.Context, c Candidate) error
	SetValue(ctx context.Context, c Candidate, value string) error
	Click(ctx context.Context, c Candidate) error
	// Submit submits the form enclosing the element.
	Submit(ctx context.Context, c Candidate) error
	Text(ctx context.Context) (title, body string, err error)
	// FirstText returns the text of the first matching element, if any exists right now.
	FirstText(ctx context.Context, c Candidate) (string, bool)
	Close() error
}

type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}
