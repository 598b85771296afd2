package merchant

import (
	"math"

	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

// Payment is one consolidated payment from the payments listing.
type Payment struct {
	PaymentID      Flex    `json:"paymentId"`
	PaymentDate    Flex    `json:"paymentDate"`
	BankCode       Flex    `json:"bankCode"`
	BankBranchCode Flex    `json:"bankBranchCode"`
	AccountNumber  Flex    `json:"accountNumber"`
	BrandCode      Flex    `json:"brandCode"`
	CompanyNumber  Flex    `json:"companyNumber"`
	DocumentNumber Flex    `json:"documentNumber"`
	CompanyName    Flex    `json:"companyName"`
	TradeName      Flex    `json:"tradeName"`
	NetAmount      float64 `json:"netAmount"`
	Status         Flex    `json:"status"`
	StatusCode     Flex    `json:"statusCode"`
	Type           Flex    `json:"type"`
	TypeCode       Flex    `json:"typeCode"`
}

func (p Payment) Record() sink.Record {
	return sink.Record{
		"payment_id":            p.PaymentID.Value(),
		"payment_date":          p.PaymentDate.Value(),
		"bank_code":             p.BankCode.Value(),
		"bank_branch_code":      p.BankBranchCode.Value(),
		"account_number":        p.AccountNumber.Value(),
		"brand_code":            p.BrandCode.Value(),
		"parent_company_number": p.CompanyNumber.Value(),
		"document_number":       p.DocumentNumber.Value(),
		"company_name":          p.CompanyName.Value(),
		"trade_name":            p.TradeName.Value(),
		"net_amount":            p.NetAmount,
		"status":                p.Status.Value(),
		"status_code":           p.StatusCode.Value(),
		"type":                  p.Type.Value(),
		"type_code":             p.TypeCode.Value(),
	}
}

// PaymentInstallment is the sale detail behind a payment.
type PaymentInstallment struct {
	InstallmentQuantity int     `json:"installmentQuantity"`
	InstallmentNumber   int     `json:"installmentNumber"`
	SaleAmount          float64 `json:"saleAmount"`
	AuthorizationCode   Flex    `json:"authorizationCode"`
	Brand               Flex    `json:"brand"`
	CardNumber          Flex    `json:"cardNumber"`
	ExpirationDate      Flex    `json:"expirationDate"`
	FlexFee             float64 `json:"flexFee"`
	MdrAmount           float64 `json:"mdrAmount"`
	FeeTotal            float64 `json:"feeTotal"`
	NSU                 Flex    `json:"nsu"`
}

// DetailRecord holds the payments detail columns. A missing nsu is stored as
// "0" so the payment no longer counts as missing detail.
func (i PaymentInstallment) DetailRecord() sink.Record {
	nsu := i.NSU
	if nsu == "" {
		nsu = "0"
	}
	return sink.Record{
		"installment_quantity": i.InstallmentQuantity,
		"installment_number":   i.InstallmentNumber,
		"sale_amount":          i.SaleAmount,
		"authorization_code":   i.AuthorizationCode.Value(),
		"brand":                i.Brand.Value(),
		"card_number":          i.CardNumber.Value(),
		"expiration_date":      i.ExpirationDate.Value(),
		"flex_fee":             i.FlexFee,
		"mdr_amount":           i.MdrAmount,
		"fee_total":            i.FeeTotal,
		"nsu":                  nsu.Value(),
	}
}

// Sale is one transaction from the sales listing.
type Sale struct {
	MovementDate      Flex    `json:"movementDate"`
	AuthorizationCode Flex    `json:"authorizationCode"`
	CaptureType       Flex    `json:"captureType"`
	NetAmount         float64 `json:"netAmount"`
	Amount            float64 `json:"amount"`
	Status            Flex    `json:"status"`
	TID               Flex    `json:"tid"`
	SaleDate          Flex    `json:"saleDate"`
	SaleHour          Flex    `json:"saleHour"`
	NSU               Flex    `json:"nsu"`
	Device            Flex    `json:"device"`
	DeviceType        Flex    `json:"deviceType"`
	MdrFee            float64 `json:"mdrFee"`
	MdrAmount         float64 `json:"mdrAmount"`
	CardNumber        Flex    `json:"cardNumber"`
	TokenNumber       Flex    `json:"tokenNumber"`
	Merchant          struct {
		CompanyNumber Flex `json:"companyNumber"`
		DocumentName  Flex `json:"documentName"`
	} `json:"merchant"`
	Modality struct {
		Type Flex `json:"type"`
	} `json:"modality"`
	InstallmentQuantity int `json:"installmentQuantity"`
}

func (s Sale) Record() sink.Record {
	return sink.Record{
		"movement_date":        s.MovementDate.Value(),
		"authorization_code":   s.AuthorizationCode.Value(),
		"capture_type":         s.CaptureType.Value(),
		"net_amount":           s.NetAmount,
		"amount":               s.Amount,
		"status":               s.Status.Value(),
		"tid":                  s.TID.Value(),
		"sale_date":            s.SaleDate.Value(),
		"sale_hour":            s.SaleHour.Value(),
		"nsu":                  s.NSU.Value(),
		"device":               s.Device.Value(),
		"device_type":          s.DeviceType.Value(),
		"mdr_fee":              s.MdrFee,
		"mdr_amount":           s.MdrAmount,
		"card_number":          s.CardNumber.Value(),
		"token_number":         s.TokenNumber.Value(),
		"company_number":       s.Merchant.CompanyNumber.Value(),
		"document_name":        s.Merchant.DocumentName.Value(),
		"modality_type":        s.Modality.Type.Value(),
		"installment_quantity": s.InstallmentQuantity,
	}
}

// Installment is one installment of a sale, with its settlement status.
type Installment struct {
	InstallmentNumber   int `json:"installmentNumber"`
	InstallmentQuantity int `json:"installmentQuantity"`
	AmountInfo          struct {
		Amount         float64 `json:"amount"`
		NetAmount      float64 `json:"netAmount"`
		DiscountAmount float64 `json:"discountAmount"`
	} `json:"amountInfo"`
	FlexFee           float64 `json:"flexFee"`
	MdrAmount         float64 `json:"mdrAmount"`
	FeeTotal          float64 `json:"feeTotal"`
	AuthorizationCode Flex    `json:"authorizationCode"`
	Brand             Flex    `json:"brand"`
	CardNumber        Flex    `json:"cardNumber"`
	ExpirationDate    Flex    `json:"expirationDate"`
	Status            Flex    `json:"status"`
	PaymentID         Flex    `json:"paymentId"`
	// The API spells this field with a double l.
	DetailHash Flex `json:"detaillHash"`
}

// Record maps the installment of the sale identified by (nsu, merchantID,
// saleDate). When the API sends no detail hash one is derived from the
// installment's own values.
func (i Installment) Record(nsu, merchantID, saleDate string) sink.Record {
	hash := i.DetailHash.Value()
	if hash == nil {
		hash = sink.Digest(nsu, merchantID, i.InstallmentNumber, i.AmountInfo.Amount,
			i.AmountInfo.NetAmount, string(i.Status), string(i.PaymentID))
	}
	return sink.Record{
		"nsu":                  nullable(nsu),
		"merchant_id":          nullable(merchantID),
		"sale_date":            nullable(saleDate),
		"installment_number":   i.InstallmentNumber,
		"installment_quantity": i.InstallmentQuantity,
		"amount":               i.AmountInfo.Amount,
		"net_amount":           i.AmountInfo.NetAmount,
		"discount_amount":      i.AmountInfo.DiscountAmount,
		"flex_fee":             i.FlexFee,
		"mdr_amount":           i.MdrAmount,
		"fee_total":            i.FeeTotal,
		"authorization_code":   i.AuthorizationCode.Value(),
		"brand":                i.Brand.Value(),
		"card_number":          i.CardNumber.Value(),
		"expiration_date":      i.ExpirationDate.Value(),
		"status":               i.Status.Value(),
		"payment_id":           i.PaymentID.Value(),
		"detail_hash":          hash,
	}
}

// Period of a receivables summary row.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodDaily   Period = "daily"
)

// ReceivableSummary totals the receivables of one company over a period.
type ReceivableSummary struct {
	Amount float64 `json:"amount"`
	Total  float64 `json:"total"`
}

func (r ReceivableSummary) Record(period Period, from, to, company string) sink.Record {
	return sink.Record{
		"period":         string(period),
		"start_date":     from,
		"end_date":       to,
		"company_number": company,
		"amount":         r.Amount,
		"total":          int64(math.Round(r.Total)),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
