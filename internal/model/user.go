package model

import "time"

// User is an account keyed by the identity provider's UID.
//
// Rows are created implicitly the first time a verified token for the UID
// reaches the API, so everything except UID is optional. The timestamps are
// pointers because rows written before the columns had defaults may hold NULL.
type User struct {
	UID         string     `db:"uid"          gorm:"column:uid;primaryKey"`
	Email       *string    `db:"email"        gorm:"column:email"`
	DisplayName *string    `db:"display_name" gorm:"column:display_name"`
	CreatedAt   *time.Time `db:"created_at"   gorm:"column:created_at"`
	UpdatedAt   *time.Time `db:"updated_at"   gorm:"column:updated_at"`
}

// TableName pins the gorm table name.
func (User) TableName() string {
	return "users"
}
