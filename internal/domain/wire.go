package domain

// Page websocket frame types.
const (
	PageMessageHello          = "hello"
	PageMessageStorageChanged = "storage.changed"
	PageMessageReload         = "reload"
	PageMessageActivate       = "activate"
)

// PageMessage is one frame on the page websocket.
type PageMessage struct {
	Type   string         `json:"type"`
	Tab    *Tab           `json:"tab,omitempty"`
	Change *StorageChange `json:"change,omitempty"`
}

// AlarmRequest schedules a named wake-up over the host API.
type AlarmRequest struct {
	Name    string `json:"name" validate:"required,max=300"`
	DelayMs int64  `json:"delayMs" validate:"gte=0"`
}

// ClearResult reports whether an alarm was pending when cleared.
type ClearResult struct {
	Cleared bool `json:"cleared"`
}

// ThemeRequest changes the theme preference.
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,max=32"`
}

// HealthStatus describes the running host.
type HealthStatus struct {
	Status    string `json:"status"`
	PID       int    `json:"pid"`
	Version   string `json:"version,omitempty"`
	StartedAt int64  `json:"startedAt"`
	Tabs      int    `json:"tabs"`
	Alarms    int    `json:"alarms"`
}
