package dto

import (
	"fmt"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DefaultArticleCode is the article code sent with every order line
const DefaultArticleCode = "F00001"

// OrderMessage is the outbound message published to the external billing
// system for one invoice
type OrderMessage struct {
	ExternalOrderRef   string                 `json:"external_order_ref"`
	ExternalCreditRef  string                 `json:"external_credit_ref,omitempty"`
	SubjectID          string                 `json:"subject_id"`
	Representative     *RepresentativeRequest `json:"representative,omitempty"`
	SeriesReference    string                 `json:"series_reference"`
	InvoiceReference   string                 `json:"invoice_reference"`
	BuyerReference     string                 `json:"buyer_reference"`
	CaseReference      string                 `json:"case_reference"`
	Description        string                 `json:"description,omitempty"`
	ArticleCode        string                 `json:"article_code"`
	Lines              []OrderLine            `json:"lines"`
	OrderDate          time.Time              `json:"order_date"`
}

// OrderLine is a single line item of an order message
type OrderLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewOrderMessage builds the outbound order message for an invoice. The
// external reference must already have been generated by the caller so the
// same reference is committed to the store on success.
func NewOrderMessage(s *series.Series, inv *invoice.Invoice, externalRef string, orderDate time.Time) *OrderMessage {
	msg := &OrderMessage{
		ExternalOrderRef: externalRef,
		SubjectID:        s.SubjectID,
		SeriesReference:  s.Reference,
		InvoiceReference: inv.Reference,
		BuyerReference:   s.BuyerReference,
		CaseReference:    s.CaseReference,
		Description:      inv.Description,
		ArticleCode:      DefaultArticleCode,
		OrderDate:        types.DateOnly(orderDate),
		Lines:            lo.Map(inv.Lines, func(l *invoice.Line, _ int) OrderLine { return newOrderLine(l) }),
	}

	if inv.CreditOf != nil {
		msg.ExternalCreditRef = *inv.CreditOf
	}

	if s.Representative != nil {
		msg.Representative = &RepresentativeRequest{
			OrganizationNumber: s.Representative.OrganizationNumber,
			Name:               s.Representative.Name,
		}
	}

	return msg
}

// NewCreditMemoMessage builds the reversal message for an invoice the
// external system reported as unpaid past the grace period. Lines mirror the
// original with negated amounts and the credit reference points back at the
// order being reversed.
func NewCreditMemoMessage(s *series.Series, inv *invoice.Invoice, creditRef string, orderDate time.Time) *OrderMessage {
	msg := &OrderMessage{
		ExternalOrderRef: creditRef,
		SubjectID:        s.SubjectID,
		SeriesReference:  s.Reference,
		InvoiceReference: inv.Reference,
		BuyerReference:   s.BuyerReference,
		CaseReference:    s.CaseReference,
		Description:      fmt.Sprintf("Credit memo for %s", inv.Description),
		ArticleCode:      DefaultArticleCode,
		OrderDate:        types.DateOnly(orderDate),
		Lines: lo.Map(inv.Lines, func(l *invoice.Line, _ int) OrderLine {
			line := newOrderLine(l)
			line.UnitPrice = line.UnitPrice.Neg()
			line.Amount = line.Amount.Neg()
			return line
		}),
	}

	if inv.ExternalOrderRef != nil {
		msg.ExternalCreditRef = *inv.ExternalOrderRef
	}

	if s.Representative != nil {
		msg.Representative = &RepresentativeRequest{
			OrganizationNumber: s.Representative.OrganizationNumber,
			Name:               s.Representative.Name,
		}
	}

	return msg
}

func newOrderLine(l *invoice.Line) OrderLine {
	// quantity is the fraction of months the line covers
	quantity := decimal.NewFromInt(1)
	if !l.MonthlyPrice.IsZero() {
		quantity = l.Amount.Div(l.MonthlyPrice).Round(2)
	}

	return OrderLine{
		Description: l.Description,
		Quantity:    quantity,
		UnitPrice:   l.MonthlyPrice,
		Amount:      l.Amount,
	}
}
