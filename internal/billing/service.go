package billing

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

// DefaultReplayWindow bounds how long an identical invoice request returns
// the prior PENDING payment instead of creating a new one.
const DefaultReplayWindow = 10 * time.Minute

// OrderPort is the slice of the orders service the billing flow needs.
type OrderPort interface {
	Get(ctx context.Context, id int64, actor shared.Actor) (*orders.Order, error)
	AdvanceForward(ctx context.Context, id int64, target orders.Status, reason string) error
}

// Notifier queues fire-and-forget side effects after a payment completes.
// Both are safe to invoke more than once for the same payment.
type Notifier interface {
	PaymentCompleted(ctx context.Context, orderID, paymentID int64)
	ReceiptRequested(ctx context.Context, paymentID int64)
}

// MetricsSink records reconciliation outcomes. Optional.
type MetricsSink interface {
	WebhookEvent(outcome string)
	PaymentCompleted(purpose string)
}

// Service owns invoice creation and payment reconciliation.
type Service struct {
	repo         RepositoryPort
	orders       OrderPort
	gateway      Gateway
	verifier     ChainVerifier
	notifier     Notifier
	metrics      MetricsSink
	broadcast    realtime.Publisher
	clock        shared.Clock
	replayWindow time.Duration
	weiPerUnit   *big.Int
	logger       *slog.Logger
}

// SetMetrics attaches the metrics sink after construction.
func (s *Service) SetMetrics(m MetricsSink) { s.metrics = m }

// NewService builds a Service instance. weiPerUnit converts invoice amounts
// to the minimum acceptable on-chain value.
func NewService(repo RepositoryPort, orderPort OrderPort, gateway Gateway, verifier ChainVerifier,
	notifier Notifier, broadcast realtime.Publisher, clock shared.Clock,
	replayWindow time.Duration, weiPerUnit *big.Int, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if replayWindow <= 0 {
		replayWindow = DefaultReplayWindow
	}
	return &Service{
		repo:         repo,
		orders:       orderPort,
		gateway:      gateway,
		verifier:     verifier,
		notifier:     notifier,
		broadcast:    broadcast,
		clock:        clock,
		replayWindow: replayWindow,
		weiPerUnit:   weiPerUnit,
		logger:       logger,
	}
}

// CreateInvoice creates a PENDING payment backed by a provider checkout. A
// financially-identical request inside the replay window returns the prior
// payment with reused=true instead of creating a duplicate.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput, actor shared.Actor) (*Payment, bool, error) {
	if !ValidPurpose(in.Purpose) {
		return nil, false, shared.NewErrorf(shared.CodeValidation, "unknown payment purpose %s", in.Purpose)
	}
	if in.Amount <= 0 {
		return nil, false, shared.NewError(shared.CodeValidation, "amount must be positive")
	}
	unit, err := currency.ParseISO(in.Currency)
	if err != nil {
		return nil, false, shared.NewErrorf(shared.CodeValidation, "unknown currency %s", in.Currency)
	}

	order, err := s.orders.Get(ctx, in.OrderID, actor)
	if err != nil {
		return nil, false, err
	}
	if orders.IsTerminal(order.Status) {
		return nil, false, shared.NewErrorf(shared.CodeInvalidState, "order %d is %s", in.OrderID, order.Status)
	}
	if s.gateway == nil {
		return nil, false, shared.NewError(shared.CodeInvalidState, "payment provider is not configured")
	}

	fingerprint := Fingerprint(in.OrderID, in.Amount, unit.String(), in.Purpose)
	now := s.clock.Now()
	if prior, err := s.repo.FindReusable(ctx, fingerprint, now.Add(-s.replayWindow)); err != nil {
		return nil, false, err
	} else if prior != nil {
		s.logger.Info("invoice replayed",
			slog.Int64("order_id", in.OrderID), slog.Int64("payment_id", prior.ID))
		return prior, true, nil
	}

	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		OrderID:     in.OrderID,
		Amount:      in.Amount,
		Currency:    unit.String(),
		Purpose:     in.Purpose,
		Description: fmt.Sprintf("Order #%d %s payment", in.OrderID, in.Purpose),
	})
	if err != nil {
		return nil, false, err
	}

	payment, err := s.repo.Insert(ctx, Payment{
		OrderID:     in.OrderID,
		Amount:      in.Amount,
		Currency:    unit.String(),
		Purpose:     in.Purpose,
		Provider:    s.gateway.Name(),
		Method:      MethodCheckout,
		Fingerprint: fingerprint,
		ProviderRef: &checkout.ProviderRef,
	})
	if err != nil {
		return nil, false, err
	}

	s.broadcast.Publish(ctx, in.OrderID, "payment:created", map[string]any{
		"payment_id": payment.ID, "amount": payment.Amount, "purpose": payment.Purpose,
	})
	return payment, false, nil
}

// Get returns one payment, checking order visibility for the actor.
func (s *Service) Get(ctx context.Context, paymentID int64, actor shared.Actor) (*Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.Get(ctx, p.OrderID, actor); err != nil {
		return nil, err
	}
	return p, nil
}

// ListByOrder returns the order's payments.
func (s *Service) ListByOrder(ctx context.Context, orderID int64, actor shared.Actor) ([]Payment, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, orderID)
}

// HandleProviderEvent applies one webhook delivery at most once. The ledger
// insert is the dedup gate: a duplicate of a handled event id short-circuits
// successfully without repeating any financial effect. A duplicate of an
// unhandled id means an earlier delivery died between the ledger insert and
// the side effects, so the redelivery picks the work back up.
func (s *Service) HandleProviderEvent(ctx context.Context, ev ProviderEvent) error {
	inserted, err := s.repo.InsertEvent(ctx, WebhookEvent{ID: ev.ID, Type: ev.Type, Payload: ev.Raw})
	if err != nil {
		return err
	}
	resume := false
	if !inserted {
		handled, err := s.repo.IsEventHandled(ctx, ev.ID)
		if err != nil {
			return err
		}
		if handled {
			s.logger.Info("webhook event already processed", slog.String("event_id", ev.ID))
			s.recordWebhook("duplicate")
			return nil
		}
		s.logger.Info("resuming unfinished webhook event", slog.String("event_id", ev.ID))
		resume = true
	}

	payment, err := s.locatePayment(ctx, ev, resume)
	if err != nil {
		if shared.CodeOf(err) == shared.CodePaymentNotFound {
			// Nothing to reconcile; keep the ledger row so a redelivery
			// does not retry forever.
			s.logger.Warn("webhook event matches no pending payment",
				slog.String("event_id", ev.ID), slog.String("provider_ref", ev.ProviderRef))
			s.recordWebhook("unmatched")
			return s.repo.MarkEventHandled(ctx, ev.ID)
		}
		return err
	}

	switch outcome := classifyEvent(ev); outcome {
	case PaymentFailed, PaymentCanceled:
		if err := s.finalize(ctx, payment, outcome); err != nil {
			return err
		}
	default:
		if err := s.complete(ctx, payment, nil, resume); err != nil {
			return err
		}
	}
	s.recordWebhook("processed")
	return s.repo.MarkEventHandled(ctx, ev.ID)
}

// classifyEvent maps the provider's type/action pair onto the payment status
// the event settles to. Anything not recognizably a failure or cancellation
// is treated as a completion.
func classifyEvent(ev ProviderEvent) PaymentStatus {
	subject := strings.ToLower(ev.Type + " " + ev.Action)
	switch {
	case strings.Contains(subject, "cancel"):
		return PaymentCanceled
	case strings.Contains(subject, "fail"), strings.Contains(subject, "reject"):
		return PaymentFailed
	}
	return PaymentCompleted
}

// ConfirmChainPayment completes a payment after its transaction hash checks
// out on chain. Verification failure leaves the payment PENDING and surfaces
// the verifier's error.
func (s *Service) ConfirmChainPayment(ctx context.Context, paymentID int64, txHash string, actor shared.Actor) (*Payment, error) {
	payment, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.Get(ctx, payment.OrderID, actor); err != nil {
		return nil, err
	}
	if payment.Status == PaymentCompleted {
		return payment, nil
	}
	if payment.Status != PaymentPending {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "payment %d is %s", paymentID, payment.Status)
	}
	if s.verifier == nil {
		return nil, shared.NewError(shared.CodeVerificationFailed, "chain payments are not enabled")
	}

	if err := s.verifier.Verify(ctx, txHash, s.requiredWei(payment.Amount)); err != nil {
		return nil, err
	}
	if err := s.complete(ctx, payment, &txHash, false); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, paymentID)
}

// CleanupEventLedger trims handled webhook rows older than retention.
func (s *Service) CleanupEventLedger(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteEventsBefore(ctx, s.clock.Now().Add(-retention))
}

func (s *Service) locatePayment(ctx context.Context, ev ProviderEvent, resume bool) (*Payment, error) {
	if ev.ProviderRef != "" {
		var p *Payment
		var err error
		if resume {
			// The first delivery may already have flipped the status, so
			// the PENDING filter would hide the payment to finish.
			p, err = s.repo.FindByProviderRef(ctx, ev.ProviderRef)
		} else {
			p, err = s.repo.FindPendingByProviderRef(ctx, ev.ProviderRef)
		}
		if err == nil {
			return p, nil
		}
		if shared.CodeOf(err) != shared.CodePaymentNotFound {
			return nil, err
		}
	}
	if ev.OrderID > 0 {
		return s.repo.FindPendingByOrder(ctx, ev.OrderID)
	}
	return nil, shared.NewError(shared.CodePaymentNotFound, "payment not found")
}

// complete is the single completion path shared by webhook and chain flows:
// mark COMPLETED, advance the order per purpose, queue side effects. With
// resume set, the side effects run even when the status flip happened on an
// earlier attempt; every effect tolerates a repeat.
func (s *Service) complete(ctx context.Context, payment *Payment, txHash *string, resume bool) error {
	changed, err := s.repo.MarkCompleted(ctx, payment.ID, s.clock.Now(), txHash)
	if err != nil {
		return err
	}
	if !changed && !resume {
		return nil
	}

	if target, ok := purposeTargets[payment.Purpose]; ok {
		if err := s.orders.AdvanceForward(ctx, payment.OrderID, target, "payment_completed"); err != nil {
			return err
		}
	}
	if s.notifier != nil {
		s.notifier.PaymentCompleted(ctx, payment.OrderID, payment.ID)
		s.notifier.ReceiptRequested(ctx, payment.ID)
	}
	if s.metrics != nil {
		s.metrics.PaymentCompleted(string(payment.Purpose))
	}
	s.broadcast.Publish(ctx, payment.OrderID, "payment:status", map[string]any{
		"payment_id": payment.ID, "status": PaymentCompleted, "purpose": payment.Purpose,
	})
	return nil
}

// finalize settles a payment as FAILED or CANCELED. The order is left where
// it is; no side effects queue for a payment that never cleared.
func (s *Service) finalize(ctx context.Context, payment *Payment, status PaymentStatus) error {
	changed, err := s.repo.MarkFinal(ctx, payment.ID, status)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.logger.Info("payment settled without clearing",
		slog.Int64("payment_id", payment.ID), slog.String("status", string(status)))
	s.broadcast.Publish(ctx, payment.OrderID, "payment:status", map[string]any{
		"payment_id": payment.ID, "status": status, "purpose": payment.Purpose,
	})
	return nil
}

func (s *Service) recordWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvent(outcome)
	}
}

func (s *Service) requiredWei(amount float64) *big.Int {
	if s.weiPerUnit == nil {
		return nil
	}
	required, _ := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(s.weiPerUnit)).Int(nil)
	return required
}
