package types

import "time"

type AlertType string

const (
	AlertTypePrice      AlertType = "PRICE"
	AlertTypePercentage AlertType = "PERCENTAGE"
	AlertTypeVolume     AlertType = "VOLUME"
)

type ConditionType string

const (
	ConditionAbove ConditionType = "ABOVE"
	ConditionBelow ConditionType = "BELOW"
	ConditionGain  ConditionType = "GAIN"
	ConditionLoss  ConditionType = "LOSS"
	ConditionSpike ConditionType = "SPIKE"
)

// Conditions lists the condition types each alert type accepts.
var Conditions = map[AlertType][]ConditionType{
	AlertTypePrice:      {ConditionAbove, ConditionBelow},
	AlertTypePercentage: {ConditionGain, ConditionLoss},
	AlertTypeVolume:     {ConditionSpike},
}

// Accepts reports whether c is a valid condition for t.
func (t AlertType) Accepts(c ConditionType) bool {
	for _, allowed := range Conditions[t] {
		if allowed == c {
			return true
		}
	}
	return false
}

// Alert is a user's standing watch condition over a symbol.
// Only the threshold matching AlertType is meaningful.
type Alert struct {
	ID               int64         `json:"id"`
	UserID           string        `json:"user_id"`
	Symbol           string        `json:"symbol"`
	AlertType        AlertType     `json:"alert_type"`
	ConditionType    ConditionType `json:"condition_type"`
	TargetPrice      float64       `json:"target_price,omitempty"`
	PercentageChange float64       `json:"percentage_change,omitempty"`
	VolumeThreshold  float64       `json:"volume_threshold,omitempty"`
	ReferencePrice   float64       `json:"reference_price"`
	IsActive         bool          `json:"is_active"`
	CreatedAt        time.Time     `json:"created_at"`
	TriggeredAt      *time.Time    `json:"triggered_at,omitempty"`
	Message          string        `json:"message"`
}

// Threshold returns the trigger parameter selected by AlertType.
func (a Alert) Threshold() float64 {
	switch a.AlertType {
	case AlertTypePrice:
		return a.TargetPrice
	case AlertTypePercentage:
		return a.PercentageChange
	case AlertTypeVolume:
		return a.VolumeThreshold
	}
	return 0
}

type AlertHistoryEntry struct {
	ID             int64     `json:"id"`
	AlertID        int64     `json:"alert_id"`
	PriceAtTrigger float64   `json:"price_at_trigger"`
	Message        string    `json:"message"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// TriggeredAlertEvent is handed to the notification dispatcher once per trigger.
type TriggeredAlertEvent struct {
	EventID   string    `json:"event_id"`
	AlertID   int64     `json:"alert_id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Message   string    `json:"message"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
