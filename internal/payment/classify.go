package payment

import "strings"

type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeDismissed  Outcome = "dismissed"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeDeclined   Outcome = "declined"
	OutcomeFailed     Outcome = "failed"
	OutcomeProcessing Outcome = "processing"
)

// IsTerminal reports whether the outcome settles the payment record.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeSucceeded, OutcomeCancelled, OutcomeDeclined, OutcomeFailed:
		return true
	}
	return false
}

type Classification struct {
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// Classify maps a widget completion onto an outcome. A dismissal is checked
// first and never counts as a decline.
func Classify(resp CompletionResponse) Classification {
	if resp.Reason == DialogDismissed {
		return Classification{Outcome: OutcomeDismissed, Detail: "checkout closed by the customer"}
	}

	tx := resp.Transaction
	if tx == nil {
		return Classification{Outcome: OutcomeProcessing}
	}

	status := strings.ToLower(strings.TrimSpace(tx.Status))
	switch {
	case status == "approved" || tx.ApprovedAt != nil:
		return Classification{Outcome: OutcomeSucceeded}
	case status == "canceled" || status == "cancelled":
		return Classification{Outcome: OutcomeCancelled, Detail: tx.LastErrorCode}
	case status == "declined":
		detail := tx.LastErrorCode
		if detail == "" {
			detail = resp.Reason
		}
		return Classification{Outcome: OutcomeDeclined, Detail: detail}
	case tx.LastErrorCode != "":
		return Classification{Outcome: OutcomeFailed, Detail: tx.LastErrorCode}
	}
	return Classification{Outcome: OutcomeProcessing, Detail: status}
}
