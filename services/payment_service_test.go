package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accreditation-system/internal/status"
	"accreditation-system/models"
)

func paymentFixture(t *testing.T) (*PaymentService, *fakeStore) {
	t.Helper()

	participantStore := newFakeStore("ev1")
	participantStore.add(models.Participant{
		ID: "p1", EventID: "ev1", NationalID: "11111111", EntryCode: "TKT001",
		PriceOwed: decPtr("100"), AmountPaid: dec("40"),
	})
	participantStore.add(models.Participant{
		ID: "p2", EventID: "ev1", NationalID: "22222222", EntryCode: "TKT002",
	})

	return NewPaymentService(participantStore), participantStore
}

func TestCompletePaymentSettlesBalance(t *testing.T) {
	svc, _ := paymentFixture(t)

	p, err := svc.CompletePayment(context.Background(), "p1", "efectivo")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPaid, p.PaymentStatus())
	assert.True(t, p.AmountPaid.Equal(dec("100")))
	assert.Equal(t, "efectivo", p.CancellationPaymentMethod)
}

func TestCompletePaymentRequiresMethod(t *testing.T) {
	svc, _ := paymentFixture(t)

	_, err := svc.CompletePayment(context.Background(), "p1", "  ")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCompletePaymentRejectsUnpriced(t *testing.T) {
	svc, _ := paymentFixture(t)

	_, err := svc.CompletePayment(context.Background(), "p2", "efectivo")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCompletePaymentRejectsAccredited(t *testing.T) {
	svc, participantStore := paymentFixture(t)
	_, err := participantStore.Accredit(context.Background(), "p1")
	require.NoError(t, err)

	_, err = svc.CompletePayment(context.Background(), "p1", "efectivo")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestSetPriceAndClear(t *testing.T) {
	svc, _ := paymentFixture(t)

	p, err := svc.SetPrice(context.Background(), "p2", decPtr("250"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.PaymentStatus())

	p, err = svc.SetPrice(context.Background(), "p2", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentNoPrice, p.PaymentStatus())
}

func TestReissueEntryWithExplicitCode(t *testing.T) {
	svc, _ := paymentFixture(t)

	p, err := svc.ReissueEntry(context.Background(), "p1", " tkt001-r9999 ")
	require.NoError(t, err)
	assert.Equal(t, "TKT001-R9999", p.ReissuedEntryCode)
}

func TestReissueEntryRejectsCollisions(t *testing.T) {
	svc, _ := paymentFixture(t)

	_, err := svc.ReissueEntry(context.Background(), "p1", "TKT002")
	assert.ErrorIs(t, err, status.ErrConflict)
}

func TestReissueEntryRejectsOwnEntryCode(t *testing.T) {
	svc, _ := paymentFixture(t)

	// The lost code stays reserved; reissuing it back would make both codes
	// resolve to the same ticket.
	_, err := svc.ReissueEntry(context.Background(), "p1", "TKT001")
	assert.ErrorIs(t, err, status.ErrConflict)
}

func TestReissueEntryReplacesOwnPreviousCode(t *testing.T) {
	svc, _ := paymentFixture(t)

	_, err := svc.ReissueEntry(context.Background(), "p1", "TKT001-R1111")
	require.NoError(t, err)

	p, err := svc.ReissueEntry(context.Background(), "p1", "TKT001-R1111")
	require.NoError(t, err)
	assert.Equal(t, "TKT001-R1111", p.ReissuedEntryCode)
}

func TestReissueEntrySuggestsCodeWhenEmpty(t *testing.T) {
	svc, _ := paymentFixture(t)

	p, err := svc.ReissueEntry(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TKT001-R[0-9A-F]{4}$`), p.ReissuedEntryCode)
}

func TestReissueEntryUnknownParticipant(t *testing.T) {
	svc, _ := paymentFixture(t)

	_, err := svc.ReissueEntry(context.Background(), "nope", "TKT100")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSuggestReissueCodeFormat(t *testing.T) {
	code := SuggestReissueCode("tkt 001")
	assert.Regexp(t, regexp.MustCompile(`^TKT001-R[0-9A-F]{4}$`), code)

	// Two suggestions for the same code should almost never collide.
	assert.NotEqual(t, SuggestReissueCode("TKT001"), SuggestReissueCode("TKT001"))
}
