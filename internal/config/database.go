// internal/config/database.go
package config

import (
	"fmt"
)

// DSN is the libpq connection string. Sessions run in UTC so stored
// timestamps compare the same from every host.
func (d *DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, sslMode,
	)
}
