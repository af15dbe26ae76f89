package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity documents mirror the shapes offline clients produce, so JSON tags
// are camelCase to match the client wire format.

type Budget struct {
	ID               string    `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	Month            int       `json:"month"`
	Year             int       `json:"year"`
	PaymentFrequency string    `json:"paymentFrequency"`
	TotalIncome      float64   `json:"totalIncome"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type BudgetPeriod struct {
	ID           string    `json:"id"`
	BudgetID     string    `json:"budgetId"`
	PeriodNumber int       `json:"periodNumber"`
	Income       float64   `json:"income"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Expense struct {
	ID             string    `json:"id"`
	UserID         uuid.UUID `json:"userId"`
	CategoryID     string    `json:"categoryId"`
	CreditCardID   *string   `json:"creditCardId,omitempty"`
	BudgetPeriodID *string   `json:"budgetPeriodId,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Description    string    `json:"description"`
	Date           time.Time `json:"date"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CreditCard struct {
	ID                string    `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	Name              string    `json:"name"`
	Bank              string    `json:"bank"`
	LimitGTQ          float64   `json:"limitGTQ"`
	LimitUSD          float64   `json:"limitUSD"`
	CurrentBalanceGTQ float64   `json:"currentBalanceGTQ"`
	CurrentBalanceUSD float64   `json:"currentBalanceUSD"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Category struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
