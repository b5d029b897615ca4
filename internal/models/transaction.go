package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Типы транзакций
const (
	TransactionTypeTransport = "transport"
	TransactionTypeService   = "service"
)

// Статусы транзакций
const (
	TransactionStatusCreated  = "created"
	TransactionStatusSuccess  = "success"
	TransactionStatusFailed   = "failed"
	TransactionStatusRefunded = "refunded"
	TransactionStatusReceived = "received"
)

// Transaction движение денег между клиентом и исполнителем по процессу.
type Transaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	CustomerID        uuid.UUID       `db:"customer_id" json:"customer_id"`
	ProviderID        uuid.UUID       `db:"provider_id" json:"provider_id"`
	JobProcessID      uuid.UUID       `db:"job_process_id" json:"job_process_id"`
	Type              string          `db:"type" json:"type"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            string          `db:"status" json:"status"`
	IsRefundRequested bool            `db:"is_refund_requested" json:"is_refund_requested"`
	RefundDetails     *string         `db:"refund_details" json:"refund_details,omitempty"`
	RefundImages      pq.StringArray  `db:"refund_images" json:"refund_images"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
