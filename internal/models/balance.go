package models

import "github.com/shopspring/decimal"

// Ключи глобальных балансов платформы
const (
	BalanceKeyCharge = "charge-balance"
	BalanceKeyApp    = "app-balance"
)

// BalanceKeys все ключи балансов.
var BalanceKeys = []string{BalanceKeyCharge, BalanceKeyApp}

// Balance агрегированный счётчик платформы.
type Balance struct {
	Key   string          `db:"key" json:"key"`
	Name  string          `db:"name" json:"name"`
	Value decimal.Decimal `db:"value" json:"value"`
}

// Ключи настроек
const (
	SettingTransportPrice           = "transport-price"
	SettingTransactionTransferHours = "transaction-transfer-hours"
	SettingCommissionRate           = "commission-rate"
)

// Setting пара ключ-значение справочника настроек.
type Setting struct {
	Key   string `db:"key" json:"key"`
	Value string `db:"value" json:"value"`
}
