package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	"github.com/justinhw1987/invoiceflow/internal/payment/adapters/stripe"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Verifier   *stripe.Verifier
	Intents    paymentdomain.IntentFetcher
	InvoiceSvc invoicedomain.Service
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	verifier   *stripe.Verifier
	intents    paymentdomain.IntentFetcher
	invoiceSvc invoicedomain.Service
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Reconciler {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      clk,
		verifier:   p.Verifier,
		intents:    p.Intents,
		invoiceSvc: p.InvoiceSvc,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// HandleWebhook verifies before it parses. Only a verified completed
// checkout that resolves to an existing invoice can change paid state.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (paymentdomain.Outcome, error) {
	if err := s.verifier.Verify(payload, signatureHeader); err != nil {
		return "", err
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return paymentdomain.OutcomeIgnored, nil
		}
		return "", err
	}

	invoiceID, err := s.resolveInvoiceID(ctx, event)
	if err != nil {
		return "", err
	}

	existing, err := s.repo.FindEvent(ctx, s.db, paymentdomain.ProviderStripe, event.EventID)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.ProcessedAt != nil {
		s.log.Info("duplicate payment event",
			zap.String("event_id", event.EventID),
			zap.String("invoice_id", invoiceID.String()),
		)
		return paymentdomain.OutcomeDuplicate, nil
	}

	transitioned, err := s.invoiceSvc.SettlePayment(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, invoicedomain.ErrNotFound) {
			return "", paymentdomain.ErrInvoiceNotFound
		}
		return "", err
	}

	now := s.clock.Now().UTC()
	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: event.EventID,
		EventType:       paymentdomain.EventTypeCheckoutCompleted,
		InvoiceID:       invoiceID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
		ProcessedAt:     &now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return "", err
	}
	if inserted {
		s.obsMetrics.RecordPaymentEvent(ctx, paymentdomain.ProviderStripe, paymentdomain.EventTypeCheckoutCompleted)
	}

	s.log.Info("payment applied",
		zap.String("event_id", event.EventID),
		zap.String("invoice_id", invoiceID.String()),
		zap.Bool("transitioned", transitioned),
	)
	return paymentdomain.OutcomeApplied, nil
}

func (s *Service) resolveInvoiceID(ctx context.Context, event *paymentdomain.CheckoutCompleted) (snowflake.ID, error) {
	ref := strings.TrimSpace(event.InvoiceRef)
	if ref == "" && event.PaymentIntentID != "" && s.intents != nil {
		intent, err := s.intents.RetrievePaymentIntent(ctx, event.PaymentIntentID)
		if err != nil {
			s.log.Warn("payment intent lookup failed",
				zap.String("event_id", event.EventID),
				zap.String("payment_intent_id", event.PaymentIntentID),
				zap.Error(err),
			)
			return 0, fmt.Errorf("%w: %v", paymentdomain.ErrCorrelationLookupFailed, err)
		}
		ref = strings.TrimSpace(intent.Metadata["invoice_id"])
	}
	if ref == "" {
		return 0, paymentdomain.ErrMissingCorrelationID
	}

	id, err := snowflake.ParseString(ref)
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrMissingCorrelationID
	}
	return id, nil
}
