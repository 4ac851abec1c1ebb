package billing

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

var (
	invoicePattern = regexp.MustCompile(`^INV-\d{8}-\d{3}$`)
	receiptPattern = regexp.MustCompile(`^RCP-\d{8}-\d{3}$`)
)

func newTestService() *Service {
	return NewService(store.NewMemoryStore(), nil)
}

func createTestRecord(t *testing.T, svc *Service, username string, unitPrice float64) *Record {
	t.Helper()
	record, err := svc.Create(context.Background(), CreateInput{
		Username: username,
		Items:    []ItemInput{{Title: "Dune", UnitPrice: unitPrice}},
	})
	require.NoError(t, err)
	return record
}

func TestService_Create(t *testing.T) {
	svc := newTestService()

	record, err := svc.Create(context.Background(), CreateInput{
		Username: "alice",
		Items: []ItemInput{
			{Title: "Dune", UnitPrice: 350, Quantity: 2},
			{Title: "Emma", UnitPrice: 180},
		},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, record.BillingID)
	assert.Regexp(t, invoicePattern, record.InvoiceNumber)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, PaymentUnpaid, record.PaymentStatus)
	assert.Equal(t, "cash", record.PaymentMethod)
	assert.Equal(t, 0.0, record.Discount)
	assert.Nil(t, record.PaidDate)

	// Line totals and tax are computed server-side.
	require.Len(t, record.Items, 2)
	assert.Equal(t, 700.0, record.Items[0].TotalPrice)
	assert.Equal(t, 1, record.Items[1].Quantity)
	assert.Equal(t, 880.0, record.Subtotal)
	assert.InDelta(t, 70.4, record.Tax, 0.001)
	assert.InDelta(t, 950.4, record.TotalAmount, 0.001)

	// Default due date is 30 days out.
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), record.DueDate, time.Minute)
}

func TestService_Create_ExplicitDueDate(t *testing.T) {
	svc := newTestService()

	due := time.Now().AddDate(0, 0, 7)
	record, err := svc.Create(context.Background(), CreateInput{
		Username: "alice",
		Items:    []ItemInput{{Title: "Dune", UnitPrice: 100}},
		DueDate:  &due,
	})

	require.NoError(t, err)
	assert.WithinDuration(t, due, record.DueDate, time.Second)
}

func TestService_Create_DefaultItemType(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 100)
	assert.Equal(t, ItemBook, record.Items[0].ItemType)
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing username", CreateInput{Items: []ItemInput{{UnitPrice: 1}}}},
		{"no items", CreateInput{Username: "alice"}},
		{"negative unit price", CreateInput{Username: "alice", Items: []ItemInput{{UnitPrice: -1}}}},
		{"unknown item type", CreateInput{Username: "alice", Items: []ItemInput{{ItemType: "pizza", UnitPrice: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, fault.ErrInvalidArgument)
		})
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestService_ListByUser(t *testing.T) {
	svc := newTestService()
	createTestRecord(t, svc, "alice", 100)
	createTestRecord(t, svc, "alice", 200)
	createTestRecord(t, svc, "bob", 300)

	records, err := svc.ListByUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestService_UpdateStatus(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 100)

	updated, err := svc.UpdateStatus(context.Background(), record.BillingID, StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, PaymentUnpaid, updated.PaymentStatus)

	_, err = svc.UpdateStatus(context.Background(), record.BillingID, "bogus", "")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = svc.UpdateStatus(context.Background(), record.BillingID, "", "bogus")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestService_ProcessPayment_FullSettlement(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 1000)

	payment, settled, err := svc.ProcessPayment(context.Background(), PaymentInput{
		BillingID: record.BillingID,
		Amount:    record.TotalAmount,
	})

	require.NoError(t, err)
	assert.Regexp(t, receiptPattern, payment.ReceiptNumber)
	assert.Equal(t, PaymentRowCompleted, payment.PaymentStatus)
	assert.Equal(t, StatusPaid, settled.Status)
	assert.Equal(t, PaymentPaid, settled.PaymentStatus)
	require.NotNil(t, settled.PaidDate)
}

func TestService_ProcessPayment_Partial(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 1000) // total 1080 with tax

	_, after, err := svc.ProcessPayment(context.Background(), PaymentInput{
		BillingID: record.BillingID,
		Amount:    400,
	})

	require.NoError(t, err)
	assert.Equal(t, PaymentPartial, after.PaymentStatus)
	assert.Equal(t, StatusPending, after.Status)
	assert.Nil(t, after.PaidDate)
}

func TestService_ProcessPayment_PartialsAccumulate(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 1000) // total 1080 with tax

	_, after, err := svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, PaymentPartial, after.PaymentStatus)

	// 800 paid, still short of 1080.
	_, after, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, PaymentPartial, after.PaymentStatus)

	// 1100 paid, crosses the total.
	_, after, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 300})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, after.PaymentStatus)
	assert.Equal(t, StatusPaid, after.Status)
	require.NotNil(t, after.PaidDate)
}

func TestService_ProcessPayment_Validation(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 100)

	_, _, err := svc.ProcessPayment(context.Background(), PaymentInput{Amount: 10})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, _, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 0})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, _, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: -5})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, _, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: "missing", Amount: 10})
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestService_PaymentHistory(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 1000)

	_, _, err := svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 100})
	require.NoError(t, err)
	_, _, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: record.BillingID, Amount: 200})
	require.NoError(t, err)

	payments, err := svc.PaymentHistory(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	payments, err = svc.PaymentHistory(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestService_GenerateInvoice(t *testing.T) {
	svc := newTestService()
	record := createTestRecord(t, svc, "alice", 500)

	invoice, err := svc.GenerateInvoice(context.Background(), record.BillingID)
	require.NoError(t, err)

	assert.Equal(t, record.InvoiceNumber, invoice.InvoiceNumber)
	assert.Equal(t, record.Subtotal, invoice.Subtotal)
	assert.Equal(t, record.TotalAmount, invoice.TotalAmount)
	// With zero discount the amount due equals the total.
	assert.Equal(t, record.TotalAmount, invoice.AmountDue)
	assert.Equal(t, record.Items, invoice.Items)

	// Rendering again must not mutate the record.
	again, err := svc.Get(context.Background(), record.BillingID)
	require.NoError(t, err)
	assert.Equal(t, record.TotalAmount, again.TotalAmount)
}

func TestService_CalculateLateFee(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name        string
		dueInDays   int
		unitPrice   float64
		wantFee     float64
		wantDaysPos bool
	}{
		{"not yet due", 10, 1000, 0, false},
		{"ten days late", -10, 1000, 20, true},
		{"capped at half the total", -400, 100, 54, true}, // total 108, cap 54
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := time.Now().AddDate(0, 0, tt.dueInDays)
			record, err := svc.Create(context.Background(), CreateInput{
				Username: "alice",
				Items:    []ItemInput{{Title: "Dune", UnitPrice: tt.unitPrice}},
				DueDate:  &due,
			})
			require.NoError(t, err)

			daysLate, fee, err := svc.CalculateLateFee(context.Background(), record.BillingID)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantFee, fee, 0.001)
			if tt.wantDaysPos {
				assert.Greater(t, daysLate, 0)
			} else {
				assert.LessOrEqual(t, daysLate, 0)
			}
		})
	}
}

func TestService_Overdue(t *testing.T) {
	svc := newTestService()

	past := time.Now().AddDate(0, 0, -5)
	older := time.Now().AddDate(0, 0, -20)
	future := time.Now().AddDate(0, 0, 5)

	recent, err := svc.Create(context.Background(), CreateInput{
		Username: "alice",
		Items:    []ItemInput{{UnitPrice: 100}},
		DueDate:  &past,
	})
	require.NoError(t, err)

	oldest, err := svc.Create(context.Background(), CreateInput{
		Username: "bob",
		Items:    []ItemInput{{UnitPrice: 100}},
		DueDate:  &older,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		Username: "carol",
		Items:    []ItemInput{{UnitPrice: 100}},
		DueDate:  &future,
	})
	require.NoError(t, err)

	// A paid record past its due date is not overdue.
	paid, err := svc.Create(context.Background(), CreateInput{
		Username: "dave",
		Items:    []ItemInput{{UnitPrice: 100}},
		DueDate:  &past,
	})
	require.NoError(t, err)
	_, _, err = svc.ProcessPayment(context.Background(), PaymentInput{BillingID: paid.BillingID, Amount: 108})
	require.NoError(t, err)

	records, err := svc.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Oldest due date first.
	assert.Equal(t, oldest.BillingID, records[0].BillingID)
	assert.Equal(t, recent.BillingID, records[1].BillingID)
}

func TestService_UserStats(t *testing.T) {
	svc := newTestService()

	past := time.Now().AddDate(0, 0, -5)

	r1 := createTestRecord(t, svc, "alice", 1000) // will be paid
	_, _, err := svc.ProcessPayment(context.Background(), PaymentInput{BillingID: r1.BillingID, Amount: 1080})
	require.NoError(t, err)

	createTestRecord(t, svc, "alice", 500) // pending, unpaid

	_, err = svc.Create(context.Background(), CreateInput{ // overdue
		Username: "alice",
		Items:    []ItemInput{{UnitPrice: 100}},
		DueDate:  &past,
	})
	require.NoError(t, err)

	createTestRecord(t, svc, "bob", 999) // someone else's

	stats, err := svc.UserStats(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalBillings)
	assert.Equal(t, 1, stats.PaidBillings)
	assert.Equal(t, 2, stats.PendingBillings)
	assert.Equal(t, 1, stats.OverdueBillings)
	// Total amount sums every record regardless of status.
	assert.InDelta(t, 1080+540+108, stats.TotalAmount, 0.001)
}

func TestGenerateNumbers_Format(t *testing.T) {
	assert.Regexp(t, invoicePattern, generateInvoiceNumber())
	assert.Regexp(t, receiptPattern, generateReceiptNumber())
}
