package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// FinanceAgent summarizes spending and flags anomalous transactions.
// A transaction is anomalous when its amount exceeds the mean by more
// than two standard deviations of the full set.
type FinanceAgent struct {
	source     TransactionSource
	periodDays int
}

// NewFinanceAgent creates the finance agent. periodDays bounds the
// reporting window mentioned in the payload; zero means 30.
func NewFinanceAgent(source TransactionSource, periodDays int) (*FinanceAgent, error) {
	if source == nil {
		return nil, Fatal(fmt.Errorf("finance agent: no source configured"))
	}
	if periodDays <= 0 {
		periodDays = 30
	}
	return &FinanceAgent{source: source, periodDays: periodDays}, nil
}

func (a *FinanceAgent) ID() string    { return "finance" }
func (a *FinanceAgent) Topic() string { return "finance" }

func (a *FinanceAgent) Run(ctx context.Context) (map[string]any, error) {
	txns, err := a.source.Transactions(ctx)
	if err != nil {
		return nil, Transient(fmt.Errorf("finance agent: fetch: %w", err))
	}

	var total float64
	byCategory := make(map[string]float64)
	for _, txn := range txns {
		total += txn.Amount
		byCategory[txn.Category] += txn.Amount
	}

	mean, std := meanStd(txns)
	threshold := mean + 2*std

	type anomaly struct {
		Merchant string  `json:"merchant"`
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
	}
	var anomalies []anomaly
	for _, txn := range txns {
		if std > 0 && txn.Amount > threshold {
			anomalies = append(anomalies, anomaly{Merchant: txn.Merchant, Category: txn.Category, Amount: txn.Amount})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Amount > anomalies[j].Amount })
	if len(anomalies) > 5 {
		anomalies = anomalies[:5]
	}

	insights := map[string]any{
		"total_spent":          round2(total),
		"by_category":          roundMap(byCategory),
		"anomalies_detected":   len(anomalies),
		"analysis_period_days": a.periodDays,
	}
	if len(anomalies) > 0 {
		details := make([]map[string]any, len(anomalies))
		for i, an := range anomalies {
			details[i] = map[string]any{
				"merchant": an.Merchant,
				"category": an.Category,
				"amount":   round2(an.Amount),
			}
		}
		insights["anomaly_details"] = details
		slog.Warn("Finance anomalies detected", "count", len(anomalies), "threshold", round2(threshold))
	}

	slog.Info("Finance analysis complete", "total_spent", round2(total), "transactions", len(txns))
	return map[string]any{"insights": insights}, nil
}

func meanStd(txns []Transaction) (mean, std float64) {
	if len(txns) == 0 {
		return 0, 0
	}
	for _, txn := range txns {
		mean += txn.Amount
	}
	mean /= float64(len(txns))
	var variance float64
	for _, txn := range txns {
		d := txn.Amount - mean
		variance += d * d
	}
	variance /= float64(len(txns))
	return mean, math.Sqrt(variance)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round2(v)
	}
	return out
}
