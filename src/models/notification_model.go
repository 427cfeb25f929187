package models

import "time"

type NotificationType string

const (
	NotificationTypeConnectionRequest  NotificationType = "connection_request"
	NotificationTypeConnectionAccepted NotificationType = "connection_accepted"
	NotificationTypeMessage            NotificationType = "message"
	NotificationTypeEvent              NotificationType = "event"
	NotificationTypeAssignment         NotificationType = "assignment"
	NotificationTypeSubmission         NotificationType = "submission"
	NotificationTypeAnnouncement       NotificationType = "announcement"
)

// NotificationPayload is the display data attached to a notification
type NotificationPayload struct {
	Message      string `json:"message,omitempty" bson:"message,omitempty"`
	FromUserId   string `json:"fromUserId,omitempty" bson:"fromUserId,omitempty"`
	FromUserName string `json:"fromUserName,omitempty" bson:"fromUserName,omitempty"`
	ActionLink   string `json:"actionLink,omitempty" bson:"actionLink,omitempty"`
	ActionLabel  string `json:"actionLabel,omitempty" bson:"actionLabel,omitempty"`
	SourceId     string `json:"sourceId,omitempty" bson:"sourceId,omitempty"`
	SourceType   string `json:"sourceType,omitempty" bson:"sourceType,omitempty"`
}

// Notification is an append-only event. Only Read changes after creation,
// and only from false to true.
type Notification struct {
	Id        string              `json:"id" bson:"_id" gorm:"primaryKey"`
	Recipient string              `json:"recipient" bson:"recipient" gorm:"index:idx_recipient_created"`
	Type      NotificationType    `json:"type" bson:"type"`
	Payload   NotificationPayload `json:"payload" bson:"payload" gorm:"serializer:json"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt" gorm:"index:idx_recipient_created"`
	Read      bool                `json:"read" bson:"read"`
}
