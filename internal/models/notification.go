package models

// Каналы уведомлений. Совпадают с routing key в обменнике notifications.
const (
	ChannelReferral     = "referral"
	ChannelSubscription = "subscription"
	ChannelTrial        = "trial"
)

// Notification локальное уведомление пользователю.
type Notification struct {
	UserID  string         `json:"userId"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Channel string         `json:"channel"`
	Data    map[string]any `json:"data,omitempty"`
}
