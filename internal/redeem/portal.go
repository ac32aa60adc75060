package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/config"
	"go.uber.org/zap"
)

// Portal redeems codes by driving the top-up site the way a customer would.
// Every attempt gets its own browser session and is torn down on every path.
type Portal struct {
	Browser Browser
	Cfg     config.Portal
	Log     *zap.Logger

	PlayerInputs  Matcher
	RedeemButtons Matcher
	CodeInputs    Matcher
	SubmitButtons Matcher
	ErrorElement  Candidate
}

var _ Redeemer = (*Portal)(nil)

func NewPortal(b Browser, cfg config.Portal, log *zap.Logger) *Portal {
	per := cfg.CandidateTimeout
	return &Portal{
		Browser: b,
		Cfg:     cfg,
		Log:     log,
		PlayerInputs: Matcher{Name: "player id input", PerCandidate: per, Candidates: []Candidate{
			CSS("input[name='id']"),
			CSS("input[placeholder*='Player ID']"),
			CSS("input[placeholder*='Game ID']"),
			CSS("#player-id"),
			CSS("input[type='text'][class*='player']"),
		}},
		RedeemButtons: Matcher{Name: "redeem button", PerCandidate: per, Candidates: []Candidate{
			ButtonText("Redeem"),
			ButtonText("Submit"),
			ButtonText("Confirm"),
			CSS("button[type='submit']"),
			CSS(".redeem-button"),
			CSS("#redeem-btn"),
		}},
		CodeInputs: Matcher{Name: "redeem code input", PerCandidate: per, Candidates: []Candidate{
			CSS("input[name='code']"),
			CSS("input[placeholder*='Redeem']"),
			CSS("input[placeholder*='Code']"),
			CSS("#redeem-code"),
			CSS("input[type='text'][class*='code']"),
		}},
		SubmitButtons: Matcher{Name: "final submit", PerCandidate: per, Candidates: []Candidate{
			CSS("button[type='submit']"),
			ButtonText("Submit"),
			ButtonText("Confirm"),
			ButtonText("Claim"),
			CSS(".submit-button"),
		}},
		ErrorElement: CSS(".error, .alert-danger, [class*='error']"),
	}
}

func (p *Portal) Redeem(ctx context.Context, playerID, code string) (res Result) {
	log := p.Log.With(zap.String("player_id", playerID))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Sprintf("redemption panicked: %v", r))
		}
		log.Info("redemption attempt finished",
			zap.Stringer("outcome", res.Outcome),
			zap.String("message", res.Message),
			zap.Duration("took", time.Since(start)))
	}()

	ctx, cancel := context.WithTimeout(ctx, p.Cfg.AttemptBudget)
	defer cancel()

	page, err := p.Browser.NewPage(ctx)
	if err != nil {
		return failure("browser init failed: " + err.Error())
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("browser close", zap.Error(err))
		}
	}()

	if err := p.fill(ctx, page, playerID, code); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure("attempt budget exhausted: " + err.Error())
		}
		return failure(err.Error())
	}

	title, body, err := page.Text(ctx)
	if err != nil {
		return failure("read result page: " + err.Error())
	}
	errText, _ := page.FirstText(ctx, p.ErrorElement)
	return Classify(title, body, errText)
}

func (p *Portal) fill(ctx context.Context, page Page, playerID, code string) error {
	if err := page.Navigate(ctx, p.Cfg.URL); err != nil {
		return fmt.Errorf("open portal: %w", err)
	}
	if err := settle(ctx, p.Cfg.PageSettle); err != nil {
		return err
	}

	idInput, err := p.PlayerInputs.First(ctx, page)
	if err != nil {
		return err
	}
	if err := page.SetValue(ctx, idInput, playerID); err != nil {
		return fmt.Errorf("enter player id: %w", err)
	}
	if err := settle(ctx, p.Cfg.InputSettle); err != nil {
		return err
	}
	if err := p.press(ctx, page, p.RedeemButtons, idInput); err != nil {
		return err
	}
	if err := settle(ctx, p.Cfg.PageSettle); err != nil {
		return err
	}

	codeInput, err := p.CodeInputs.First(ctx, page)
	if err != nil {
		return err
	}
	if err := page.SetValue(ctx, codeInput, code); err != nil {
		return fmt.Errorf("enter redeem code: %w", err)
	}
	if err := settle(ctx, p.Cfg.InputSettle); err != nil {
		return err
	}
	if err := p.press(ctx, page, p.SubmitButtons, codeInput); err != nil {
		return err
	}
	return settle(ctx, p.Cfg.ResultSettle)
}

// press clicks the first matching button, or submits the input's form when
// no button is found or the click fails.
func (p *Portal) press(ctx context.Context, page Page, buttons Matcher, input Candidate) error {
	btn, err := buttons.First(ctx, page)
	if err == nil {
		if err = page.Click(ctx, btn); err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", buttons.Name, ctx.Err())
	}
	p.Log.Debug("falling back to form submit", zap.String("control", buttons.Name), zap.NamedError("cause", err))
	if err := page.Submit(ctx, input); err != nil {
		return fmt.Errorf("%s: form submit: %w", buttons.Name, err)
	}
	return nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
