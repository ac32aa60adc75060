package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery identifies one fulfilled (or failed) order line and its recipient.
type Delivery struct {
	UserID      string
	Username    string
	Email       string
	OrderID     string
	OrderItemID string
	ProductName string
	PlayerID    string
	Code        string
}

type Alert struct {
	Delivery
	Reason          string
	SecondaryReason string
}

type StaleCode struct {
	Code        string
	ProductID   string
	OrderItemID string
	AllocatedAt time.Time
}

// Receipt reports what reached the customer. A zero error field means that
// channel succeeded; Sink methods never return a bare error.
type Receipt struct {
	NotificationID string
	NotifyErr      error
	EmailErr       error
}

func (r Receipt) Err() error { return errors.Join(r.NotifyErr, r.EmailErr) }

type Sink struct {
	Store         Store
	Mailer        Mailer
	Templates     *Templates
	Support       Support
	OperatorEmail string
	Log           *zap.Logger

	Now   func() time.Time
	NewID func() string
}

func NewSink(store Store, mailer Mailer, tmpl *Templates, support Support, operatorEmail string, log *zap.Logger) *Sink {
	return &Sink{
		Store:         store,
		Mailer:        mailer,
		Templates:     tmpl,
		Support:       support,
		OperatorEmail: operatorEmail,
		Log:           log,
		Now:           time.Now,
		NewID:         uuid.NewString,
	}
}

type mailView struct {
	Delivery
	PortalURL       string
	SupportEmail    string
	SupportWhatsApp string
}

func (s *Sink) view(d Delivery) mailView {
	return mailView{Delivery: d, PortalURL: s.Support.PortalURL, SupportEmail: s.Support.Email, SupportWhatsApp: s.Support.WhatsApp}
}

func (s *Sink) RechargeSucceeded(ctx context.Context, d Delivery) Receipt {
	var rc Receipt
	rc.NotificationID, rc.NotifyErr = s.notify(ctx, d, KindRedeem,
		"Recharge réussie",
		fmt.Sprintf("%s a été crédité sur le Player ID %s.", d.ProductName, d.PlayerID), d.Code)
	rc.EmailErr = s.mail(ctx, d.Email, "Recharge réussie - "+d.ProductName, tmplRechargeSuccess, s.view(d))
	s.logReceipt("recharge success delivered", d, rc)
	return rc
}

// ManualFallback hands the code to the customer with self-service steps.
func (s *Sink) ManualFallback(ctx context.Context, d Delivery) Receipt {
	var rc Receipt
	rc.NotificationID, rc.NotifyErr = s.notify(ctx, d, KindWarning,
		"Recharge manuelle requise",
		fmt.Sprintf("La recharge automatique de %s a échoué. Utilisez le code %s sur %s avec votre Player ID %s.",
			d.ProductName, d.Code, s.Support.PortalURL, d.PlayerID),
		d.Code)
	rc.EmailErr = s.mail(ctx, d.Email, "Action requise : utilisez votre code "+d.ProductName, tmplManualFallback, s.view(d))
	s.logReceipt("manual fallback sent", d, rc)
	return rc
}

// DeliverCode emails the code first; the notification always carries the
// code and, when the email failed, the failure text.
func (s *Sink) DeliverCode(ctx context.Context, d Delivery) Receipt {
	var rc Receipt
	rc.EmailErr = s.mail(ctx, d.Email, "Votre code "+d.ProductName, tmplCodeDelivery, s.view(d))

	msg := fmt.Sprintf("Votre code pour %s : %s", d.ProductName, d.Code)
	if rc.EmailErr != nil {
		msg += fmt.Sprintf(" (l'email n'a pas pu être envoyé : %v)", rc.EmailErr)
	}
	rc.NotificationID, rc.NotifyErr = s.notify(ctx, d, KindRedeem, "Code disponible", msg, d.Code)
	s.logReceipt("code delivered", d, rc)
	return rc
}

// OperatorAlert mails the operator. Only the email channel is used.
func (s *Sink) OperatorAlert(ctx context.Context, a Alert) Receipt {
	return Receipt{EmailErr: s.mail(ctx, s.OperatorEmail,
		fmt.Sprintf("[CRITICAL] fulfillment failed for order %s", a.OrderID), tmplOperatorAlert, a)}
}

func (s *Sink) StaleReport(ctx context.Context, cutoff time.Time, codes []StaleCode) error {
	return s.mail(ctx, s.OperatorEmail,
		fmt.Sprintf("[report] %d undelivered redeem code(s)", len(codes)),
		tmplStaleReport, struct {
			Cutoff time.Time
			Codes  []StaleCode
		}{cutoff, codes})
}

func (s *Sink) notify(ctx context.Context, d Delivery, kind Kind, title, msg, code string) (string, error) {
	n := &Notification{
		ID:         s.NewID(),
		UserID:     d.UserID,
		Kind:       kind,
		Title:      title,
		Message:    msg,
		RedeemCode: code,
		OrderID:    d.OrderID,
		CreatedAt:  s.Now(),
	}
	if err := s.Store.Create(ctx, n); err != nil {
		return "", fmt.Errorf("create notification: %w", err)
	}
	return n.ID, nil
}

func (s *Sink) mail(ctx context.Context, to, subject, tmpl string, data any) error {
	body, err := s.Templates.Render(tmpl, data)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, Email{To: to, Subject: subject, Body: body})
}

func (s *Sink) logReceipt(msg string, d Delivery, rc Receipt) {
	fields := []zap.Field{
		zap.String("order_id", d.OrderID),
		zap.String("order_item_id", d.OrderItemID),
		zap.String("notification_id", rc.NotificationID),
	}
	if err := rc.Err(); err != nil {
		s.Log.Warn(msg+" (partially)", append(fields, zap.Error(err))...)
		return
	}
	s.Log.Info(msg, fields...)
}
