package models

// Setting is one key-value row in the settings table. Values are opaque
// strings; credentials are encrypted before they reach the store, so a
// Setting never knows whether its value is ciphertext.
type Setting struct {
	ID    string `db:"setting_id" json:"setting_id"`
	Value string `db:"setting_value" json:"setting_value"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}

// Reserved and well-known setting identifiers. The hierarchical naming
// mirrors the groups the configuration screens write.
const (
	SettingSecretKey = "app/secret-key"

	SettingCaldavURL           = "caldav/url"
	SettingCaldavUsername      = "caldav/username"
	SettingCaldavPassword      = "caldav/password"
	SettingCaldavCollectionURL = "caldav/collection-url"

	SettingOpenIDClientID          = "openid/client-id"
	SettingOpenIDClientSecret      = "openid/client-secret"
	SettingOpenIDDiscoveryDocument = "openid/discovery-document"

	SettingScheme    = "http/scheme"
	SettingUserEmail = "user/email"
)
