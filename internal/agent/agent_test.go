package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestActivityAgentDetectsRoutines(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	source := ActivitySourceFunc(func(context.Context) ([]ActivityRecord, error) {
		var recs []ActivityRecord
		// Same 7am run on three days, plus a one-off at 14:00.
		for day := 0; day < 3; day++ {
			recs = append(recs, ActivityRecord{Name: "run", At: base.AddDate(0, 0, day).Add(7 * time.Hour)})
		}
		recs = append(recs, ActivityRecord{Name: "dentist", At: base.Add(14 * time.Hour)})
		return recs, nil
	})

	ag, err := NewActivityAgent(source)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := ag.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if payload["total_activities"].(int) != 4 {
		t.Errorf("total_activities = %v, want 4", payload["total_activities"])
	}
	routines := payload["routines"].(map[string]any)
	if len(routines) != 1 {
		t.Fatalf("routines = %d, want 1 (one-offs must not count)", len(routines))
	}
	r0 := routines["routine_0"].(map[string]any)
	if r0["typical_hour"].(int) != 7 {
		t.Errorf("typical_hour = %v, want 7", r0["typical_hour"])
	}
}

func TestActivityAgentEmptySource(t *testing.T) {
	ag, _ := NewActivityAgent(ActivitySourceFunc(func(context.Context) ([]ActivityRecord, error) {
		return nil, nil
	}))
	payload, err := ag.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if payload["total_activities"].(int) != 0 {
		t.Errorf("total_activities = %v, want 0", payload["total_activities"])
	}
}

func TestFinanceAgentFlagsAnomalies(t *testing.T) {
	source := TransactionSourceFunc(func(context.Context) ([]Transaction, error) {
		txns := []Transaction{}
		for i := 0; i < 20; i++ {
			txns = append(txns, Transaction{Merchant: "GreenGrocer", Category: "groceries", Amount: 50})
		}
		txns = append(txns, Transaction{Merchant: "AeroBook", Category: "travel", Amount: 900})
		return txns, nil
	})

	ag, err := NewFinanceAgent(source, 30)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := ag.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	insights := payload["insights"].(map[string]any)
	if insights["anomalies_detected"].(int) != 1 {
		t.Errorf("anomalies_detected = %v, want 1", insights["anomalies_detected"])
	}
	if got := insights["total_spent"].(float64); got != 1900 {
		t.Errorf("total_spent = %v, want 1900", got)
	}
	details := insights["anomaly_details"].([]map[string]any)
	if details[0]["merchant"] != "AeroBook" {
		t.Errorf("top anomaly merchant = %v, want AeroBook", details[0]["merchant"])
	}
}

func TestFinanceAgentUniformSpendNoAnomalies(t *testing.T) {
	source := TransactionSourceFunc(func(context.Context) ([]Transaction, error) {
		return []Transaction{
			{Category: "groceries", Amount: 40},
			{Category: "groceries", Amount: 40},
			{Category: "groceries", Amount: 40},
		}, nil
	})
	ag, _ := NewFinanceAgent(source, 0)
	payload, err := ag.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	insights := payload["insights"].(map[string]any)
	if insights["anomalies_detected"].(int) != 0 {
		t.Errorf("anomalies_detected = %v, want 0", insights["anomalies_detected"])
	}
	if insights["analysis_period_days"].(int) != 30 {
		t.Errorf("analysis_period_days = %v, want default 30", insights["analysis_period_days"])
	}
}

func TestEmailAgentSummary(t *testing.T) {
	source := EmailSourceFunc(func(context.Context) ([]EmailRecord, error) {
		return []EmailRecord{
			{From: "boss@work.example", Priority: "high", Unread: true},
			{From: "boss@work.example", Priority: "normal", Unread: true},
			{From: "news@list.example", Priority: "low", Unread: true},
			{From: "old@friend.example", Priority: "normal", Unread: false},
		}, nil
	})

	ag, err := NewEmailAgent(source)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := ag.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if payload["total_unread"].(int) != 3 {
		t.Errorf("total_unread = %v, want 3", payload["total_unread"])
	}
	if payload["high_priority_count"].(int) != 1 {
		t.Errorf("high_priority_count = %v, want 1", payload["high_priority_count"])
	}
	senders := payload["sender_frequency"].(map[string]int)
	if senders["boss@work.example"] != 2 {
		t.Errorf("sender_frequency[boss] = %d, want 2", senders["boss@work.example"])
	}
	if payload["summary"].(string) == "" {
		t.Error("summary is empty")
	}
}

func TestAgentConstructorsRequireSource(t *testing.T) {
	if _, err := NewActivityAgent(nil); !IsFatal(err) {
		t.Error("NewActivityAgent(nil) should return a fatal error")
	}
	if _, err := NewFinanceAgent(nil, 0); !IsFatal(err) {
		t.Error("NewFinanceAgent(nil) should return a fatal error")
	}
	if _, err := NewEmailAgent(nil); !IsFatal(err) {
		t.Error("NewEmailAgent(nil) should return a fatal error")
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	if !IsTransient(Transient(base)) {
		t.Error("Transient() not classified transient")
	}
	if IsFatal(Transient(base)) {
		t.Error("Transient() classified fatal")
	}
	if !IsFatal(Fatal(base)) {
		t.Error("Fatal() not classified fatal")
	}
	if IsTransient(Fatal(base)) {
		t.Error("Fatal() classified transient")
	}
	// Unclassified errors default to transient.
	if !IsTransient(base) {
		t.Error("plain error should be transient")
	}
	// Wrapping preserves classification.
	wrapped := Transient(Fatal(base))
	if !IsFatal(wrapped) {
		t.Error("fatal inside transient wrapper should stay fatal")
	}
	if Transient(nil) != nil || Fatal(nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}
