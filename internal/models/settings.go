package models

// GlobalSettings are the two admin-controlled switches consulted by every
// mutating operation. Read-mostly; staleness of one in-flight operation is
// acceptable.
type GlobalSettings struct {
	MaintenanceMode bool `json:"maintenance_mode"`
	AddDropEnabled  bool `json:"add_drop_enabled"`
}

// Setting keys in the academic store's key/value settings table.
const (
	SettingMaintenanceMode = "maintenance_mode"
	SettingAddDropEnabled  = "add_drop_enabled"
)
