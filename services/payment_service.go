package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"accreditation-system/internal/status"
	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/monitoring"
	"accreditation-system/utils"
)

// PaymentService handles the money side of a participant record: settling
// outstanding balances, fixing prices, and reissuing lost entry codes.
type PaymentService struct {
	store store.ParticipantStore
}

func NewPaymentService(participantStore store.ParticipantStore) *PaymentService {
	return &PaymentService{store: participantStore}
}

// CompletePayment settles the participant's balance in full using the given
// payment method. Only uncollected, non-accredited participants qualify.
func (s *PaymentService) CompletePayment(ctx context.Context, participantID, method string) (*models.Participant, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", status.ErrValidation)
	}

	p, err := s.store.CompletePayment(ctx, participantID, method)
	if err != nil {
		monitoring.TrackPaymentOperation("complete", "error")
		return nil, err
	}
	monitoring.TrackPaymentOperation("complete", "ok")
	return p, nil
}

// SetPrice updates the price owed. A nil price clears it, which also marks
// the participant as owing nothing.
func (s *PaymentService) SetPrice(ctx context.Context, participantID string, price *decimal.Decimal) (*models.Participant, error) {
	p, err := s.store.SetPrice(ctx, participantID, price)
	if err != nil {
		monitoring.TrackPaymentOperation("set_price", "error")
		return nil, err
	}
	monitoring.TrackPaymentOperation("set_price", "ok")
	return p, nil
}

// ReissueEntry records a replacement entry code for a lost ticket. When no
// code is supplied one is derived from the original so the lineage stays
// visible on the credential.
func (s *PaymentService) ReissueEntry(ctx context.Context, participantID, code string) (*models.Participant, error) {
	code = models.NormalizeKey(code)
	if code == "" {
		current, err := s.store.FindParticipant(ctx, participantID)
		if err != nil {
			monitoring.TrackPaymentOperation("reissue", "error")
			return nil, err
		}
		code = SuggestReissueCode(current.EntryCode)
	}

	p, err := s.store.ReissueEntry(ctx, participantID, code)
	if err != nil {
		monitoring.TrackPaymentOperation("reissue", "error")
		return nil, err
	}
	monitoring.TrackPaymentOperation("reissue", "ok")
	return p, nil
}

// SuggestReissueCode derives a replacement code from the original entry
// code, e.g. TKT001 becomes TKT001-R3F2A.
func SuggestReissueCode(entryCode string) string {
	suffix, err := utils.GenerateCode(2)
	if err != nil {
		suffix = "0000"
	}
	return fmt.Sprintf("%s-R%s", models.NormalizeKey(entryCode), suffix)
}
