package store

import "time"

// SubmissionModel is the GORM model behind the contact_forms table.
type SubmissionModel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"index;not null"`
	Email     string    `gorm:"index;not null"`
	Phone     string    `gorm:"index;not null"`
	Title     string    `gorm:"index;not null"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index;not null;default:CURRENT_TIMESTAMP"`
}

// TableName keeps the table name used by existing deployments.
func (SubmissionModel) TableName() string {
	return "contact_forms"
}
