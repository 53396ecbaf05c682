package domain

import "strings"

// Establishment is a facility posting replacements (establishments collection)
type Establishment struct {
	ID      string `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	Name    string `gorm:"column:name;type:varchar(255)" json:"name"`
	City    string `gorm:"column:city;type:varchar(128)" json:"city,omitempty"`
	Address string `gorm:"column:address;type:varchar(255)" json:"address,omitempty"`
}

func (Establishment) TableName() string { return "establishments" }

// Professional is a user taking replacements (users collection)
type Professional struct {
	ID        string `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	FirstName string `gorm:"column:first_name;type:varchar(128)" json:"firstName"`
	LastName  string `gorm:"column:last_name;type:varchar(128)" json:"lastName"`
	Email     string `gorm:"column:email;type:varchar(255)" json:"email,omitempty"`
}

func (Professional) TableName() string { return "users" }

// DisplayName is "First Last", trimmed
func (p Professional) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
