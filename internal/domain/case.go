package domain

import (
	"fmt"
	"time"
)

// Case is an open matter handled for a client.
type Case struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category classifies filed documents.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is an item the client still has to complete.
type Task struct {
	ID       string     `json:"id"`
	ClientID string     `json:"client_id"`
	Title    string     `json:"title"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

// Payment is a settled charge on the client's account.
type Payment struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	PaidAt      time.Time `json:"paid_at"`
}

// Amount formats the payment amount, e.g. "USD 120.50".
func (p Payment) Amount() string {
	sign := ""
	cents := p.AmountCents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", p.Currency, sign, cents/100, cents%100)
}

// FAQEntry is a knowledge base question with its canned answer.
type FAQEntry struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Keywords string `json:"keywords"`
}
