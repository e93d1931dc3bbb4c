package agent

import (
	"context"
	"time"
)

// Ingestion connectors hand raw domain records to an agent through these
// interfaces. The core never parses connector formats itself; calendar
// APIs, bank exports, and mail clients live behind them.

// ActivityRecord is one calendar or tracker entry.
type ActivityRecord struct {
	Name        string    `json:"name"`
	At          time.Time `json:"at"`
	DurationMin int       `json:"duration_min"`
}

// ActivitySource supplies the activity agent's input records.
type ActivitySource interface {
	Activities(ctx context.Context) ([]ActivityRecord, error)
}

// Transaction is one spending record.
type Transaction struct {
	Merchant string    `json:"merchant"`
	Category string    `json:"category"`
	Amount   float64   `json:"amount"`
	At       time.Time `json:"at"`
}

// TransactionSource supplies the finance agent's input records.
type TransactionSource interface {
	Transactions(ctx context.Context) ([]Transaction, error)
}

// EmailRecord is one inbox entry.
type EmailRecord struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Priority   string    `json:"priority"` // "high", "normal", "low"
	ReceivedAt time.Time `json:"received_at"`
	Unread     bool      `json:"unread"`
}

// EmailSource supplies the email agent's input records.
type EmailSource interface {
	Emails(ctx context.Context) ([]EmailRecord, error)
}

// Func adapters so a plain closure can back an agent in wiring and tests.

type ActivitySourceFunc func(ctx context.Context) ([]ActivityRecord, error)

func (f ActivitySourceFunc) Activities(ctx context.Context) ([]ActivityRecord, error) {
	return f(ctx)
}

type TransactionSourceFunc func(ctx context.Context) ([]Transaction, error)

func (f TransactionSourceFunc) Transactions(ctx context.Context) ([]Transaction, error) {
	return f(ctx)
}

type EmailSourceFunc func(ctx context.Context) ([]EmailRecord, error)

func (f EmailSourceFunc) Emails(ctx context.Context) ([]EmailRecord, error) {
	return f(ctx)
}

// SampleActivitySource returns a static week of plausible activity
// records, used until a real calendar connector is configured.
func SampleActivitySource() ActivitySource {
	return ActivitySourceFunc(func(ctx context.Context) ([]ActivityRecord, error) {
		base := time.Now().AddDate(0, 0, -7).Truncate(24 * time.Hour)
		var records []ActivityRecord
		daily := []struct {
			name string
			hour int
			mins int
		}{
			{"morning run", 7, 40},
			{"standup", 9, 15},
			{"deep work", 10, 120},
			{"lunch walk", 13, 30},
			{"code review", 15, 45},
			{"reading", 21, 30},
		}
		for day := 0; day < 7; day++ {
			for _, d := range daily {
				records = append(records, ActivityRecord{
					Name:        d.name,
					At:          base.AddDate(0, 0, day).Add(time.Duration(d.hour) * time.Hour),
					DurationMin: d.mins,
				})
			}
		}
		return records, nil
	})
}

// SampleTransactionSource returns a static month of spending with one
// deliberate outlier so anomaly detection has something to find.
func SampleTransactionSource() TransactionSource {
	return TransactionSourceFunc(func(ctx context.Context) ([]Transaction, error) {
		base := time.Now().AddDate(0, 0, -30)
		txns := []Transaction{}
		weekly := []Transaction{
			{Merchant: "GreenGrocer", Category: "groceries", Amount: 62.40},
			{Merchant: "MetroCard", Category: "transport", Amount: 33.00},
			{Merchant: "Cafe Brio", Category: "dining", Amount: 18.75},
			{Merchant: "StreamFlix", Category: "subscriptions", Amount: 12.99},
		}
		for week := 0; week < 4; week++ {
			for i, txn := range weekly {
				txn.At = base.AddDate(0, 0, week*7+i)
				txns = append(txns, txn)
			}
		}
		txns = append(txns, Transaction{
			Merchant: "AeroBook",
			Category: "travel",
			Amount:   540.00,
			At:       base.AddDate(0, 0, 26),
		})
		return txns, nil
	})
}

// SampleEmailSource returns a static inbox snapshot.
func SampleEmailSource() EmailSource {
	return EmailSourceFunc(func(ctx context.Context) ([]EmailRecord, error) {
		now := time.Now()
		return []EmailRecord{
			{From: "team@workspace.example", Subject: "Sprint planning notes", Priority: "normal", ReceivedAt: now.Add(-3 * time.Hour), Unread: true},
			{From: "billing@utility.example", Subject: "Payment due Friday", Priority: "high", ReceivedAt: now.Add(-5 * time.Hour), Unread: true},
			{From: "newsletter@daily.example", Subject: "Morning digest", Priority: "low", ReceivedAt: now.Add(-8 * time.Hour), Unread: true},
			{From: "team@workspace.example", Subject: "Re: design doc", Priority: "normal", ReceivedAt: now.Add(-26 * time.Hour), Unread: false},
			{From: "alerts@bank.example", Subject: "Large transaction alert", Priority: "high", ReceivedAt: now.Add(-2 * time.Hour), Unread: true},
		}, nil
	})
}
