// internal/models/notification.go
package models

type Notification struct {
	ID        string                 `json:"id"`
	Recipient string                 `json:"recipient"`
	Type      string                 `json:"type"`    // "otp", "eligibility_result", "manager_decision"
	Channel   string                 `json:"channel"` // "email", "sms"
	Status    string                 `json:"status"`  // "sent", "failed", "disabled"
	Payload   map[string]interface{} `json:"payload"`
	SentAt    string                 `json:"sentAt"`
	CreatedAt string                 `json:"createdAt"`
}

type NotificationTemplate struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"htmlBody,omitempty"`
	Version  string `json:"version"`
}
