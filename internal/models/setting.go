package models

// SettingName identifies a device setting row. One row per name; absence
// means the setting is unset.
type SettingName string

const (
	SettingExhibitionID     SettingName = "EXHIBITION_ID"
	SettingRoomID           SettingName = "EXHIBITION_ROOM_ID"
	SettingRoomGroupID      SettingName = "EXHIBITION_ROOM_GROUP_ID"
	SettingDeviceID         SettingName = "EXHIBITION_DEVICE_ID"
	SettingIdlePageID       SettingName = "EXHIBITION_IDLE_PAGE_ID"
	SettingContentVersionID SettingName = "EXHIBITION_CONTENT_VERSION_ID"
)

// DeviceSetting is a single name/value identity or configuration row.
type DeviceSetting struct {
	Name  SettingName `json:"name"`
	Value string      `json:"value"`
}
