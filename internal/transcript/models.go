package transcript

import "time"

// AlarmState is the partition arming state reported by the panel.
type AlarmState string

const (
	StateDisarmed  AlarmState = "disarmed"
	StateArmedAway AlarmState = "armed_away"
	StateArmedStay AlarmState = "armed_stay"
	StateUnknown   AlarmState = "unknown"
)

// String returns a human-readable name for the state.
func (s AlarmState) String() string {
	switch s {
	case StateDisarmed:
		return "Disarmed"
	case StateArmedAway:
		return "Armed Away"
	case StateArmedStay:
		return "Armed Stay"
	default:
		return "Unknown"
	}
}

// Zone is a single monitored sensor point reported on the zones page.
type Zone struct {
	// ID is the panel's zone number (e.g., "1")
	ID string `json:"id"`

	// Name is the installer-assigned zone description (e.g., "Front Door")
	Name string `json:"name"`

	// Open reports whether the zone contact is currently open
	Open bool `json:"open"`

	// Bypassed reports whether the zone is excluded from arming
	Bypassed bool `json:"bypassed"`
}

// Snapshot is one complete parsed observation of the panel. Snapshots are
// immutable values; each successful poll produces a fresh one. Zone order
// follows the panel's zones table and is stable across polls.
type Snapshot struct {
	State AlarmState `json:"state"`

	// ZonesBypassed reports whether the panel armed with bypassed zones.
	// Only meaningful while armed.
	ZonesBypassed bool `json:"zones_bypassed"`

	Zones []Zone `json:"zones"`

	// BatteryVolt is the backup battery voltage (e.g., 13.5)
	BatteryVolt float64 `json:"battery_volt"`

	// ACPower reports whether mains power is present
	ACPower bool `json:"ac_power"`

	CapturedAt time.Time `json:"captured_at"`
}

// PartitionStatus holds the fields parsed from the partition page before
// they are merged with the zones table into a Snapshot.
type PartitionStatus struct {
	State         AlarmState
	ZonesBypassed bool
	BatteryVolt   float64
	ACPower       bool
}
