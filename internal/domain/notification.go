package domain

import "time"

// Level is the severity of a toast notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// ToastDuration is how long a toast stays on screen.
const ToastDuration = 3 * time.Second

// Notification is a transient message shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Fixed notification texts shared by every front end.
var (
	NotifyScraping = Notification{Level: LevelInfo, Message: "Scraping website..."}
	NotifyScraped  = Notification{Level: LevelSuccess, Message: "Website scraped successfully!"}
	NotifyCopied   = Notification{Level: LevelSuccess, Message: "Copied to clipboard!"}
	NotifyCopyFail = Notification{Level: LevelError, Message: "Failed to copy text"}
)

// NotifyError wraps any failure for display.
func NotifyError(err error) Notification {
	return Notification{Level: LevelError, Message: "Error: " + err.Error()}
}
