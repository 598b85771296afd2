package merchant

import "github.com/dmitrijs2005/stmtsync/internal/sink"

// Sink tables. Payments and sales are immutable facts: appended, with the
// first inserted copy kept. Installments and receivables change over time:
// upserted, with the latest copy kept.
var (
	PaymentsTable = sink.Table{
		Name: "payments",
		Columns: []string{
			"payment_id", "payment_date", "bank_code", "bank_branch_code", "account_number",
			"brand_code", "parent_company_number", "document_number", "company_name", "trade_name",
			"net_amount", "status", "status_code", "type", "type_code",
		},
		Detail: []string{
			"installment_quantity", "installment_number", "sale_amount", "authorization_code", "brand",
			"card_number", "expiration_date", "flex_fee", "mdr_amount", "fee_total", "nsu",
		},
		Mode:       sink.ModeAppend,
		Survivor:   sink.SurvivorFirstInserted,
		DateColumn: "payment_date",
	}

	SalesTable = sink.Table{
		Name: "sales",
		Columns: []string{
			"movement_date", "authorization_code", "capture_type", "net_amount", "amount", "status",
			"tid", "sale_date", "sale_hour", "nsu", "device", "device_type", "mdr_fee", "mdr_amount",
			"card_number", "token_number", "company_number", "document_name", "modality_type",
			"installment_quantity",
		},
		Mode:       sink.ModeAppend,
		Survivor:   sink.SurvivorFirstInserted,
		DateColumn: "sale_date",
	}

	InstallmentsTable = sink.Table{
		Name: "installments",
		Columns: []string{
			"nsu", "merchant_id", "sale_date", "installment_number", "installment_quantity",
			"amount", "net_amount", "discount_amount", "flex_fee", "mdr_amount", "fee_total",
			"authorization_code", "brand", "card_number", "expiration_date", "status",
			"payment_id", "detail_hash",
		},
		Key:        []string{"nsu", "merchant_id", "installment_number"},
		Mode:       sink.ModeUpsert,
		Survivor:   sink.SurvivorMostRecent,
		DateColumn: "sale_date",
	}

	ReceivablesTable = sink.Table{
		Name:       "receivables",
		Columns:    []string{"period", "start_date", "end_date", "company_number", "amount", "total"},
		Key:        []string{"period", "start_date", "end_date", "company_number"},
		Mode:       sink.ModeUpsert,
		Survivor:   sink.SurvivorMostRecent,
		DateColumn: "start_date",
	}
)

// Tables lists every sink table.
func Tables() []sink.Table {
	return []sink.Table{PaymentsTable, SalesTable, InstallmentsTable, ReceivablesTable}
}
