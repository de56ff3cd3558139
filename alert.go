package monitoring_station

// AlertType classifies an active alert for the front end.
type AlertType string

const (
	AlertDisconnect AlertType = "disconnect"
	AlertTempUp     AlertType = "tempUp"
	AlertTempDown   AlertType = "tempDown"
)

// Alert is one currently-active alarm condition. Identity is ID; the
// store holds at most one Alert per ID.
type Alert struct {
	ID          string    `json:"id"`
	DateTime    string    `json:"dateTime"` // formatted local time, 02/01/2006 15:04:05
	Type        AlertType `json:"type"`
	Device      string    `json:"device"`
	Description string    `json:"description"`
}

// AlertRemoval is the payload of an alert-removed notification.
type AlertRemoval struct {
	ID string `json:"id"`
}

// MuteStatus is the externally visible mute state.
type MuteStatus struct {
	Muted bool `json:"muted"`
	// ExpiresAt is RFC3339 UTC; nil while unmuted.
	ExpiresAt *string `json:"expiresAt"`
}

// DeviceStatusUpdate carries the full refrigerator status vector to the
// front end on every realtime change, whether or not any bit flipped.
type DeviceStatusUpdate struct {
	Timestamp string `json:"timestamp"` // 2006-01-02 15:04:05 in display offset
	Status    []int  `json:"status"`    // 6 entries, each 0 or 1
}

// ConnectivityStatus reports reachability of the two upstream feeds and
// the public internet.
type ConnectivityStatus struct {
	Internet bool `json:"internet"`
	MQTT     bool `json:"mqtt"`
	Realtime bool `json:"realtime"`
}
