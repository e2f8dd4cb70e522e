// Package model defines the storage rows shared by the repositories and the
// service layer. Wire shapes live in package serializer, so these structs
// carry no json tags.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// History is one time-series point owned by a user.
//
// Value is a fixed-point decimal with two fractional digits. Using
// decimal.Decimal instead of float64 keeps sums exact; the serializer turns
// it into a JSON number only at the edge.
type History struct {
	ID        string          `db:"id"         gorm:"column:id;primaryKey"`
	UserID    string          `db:"user_id"    gorm:"column:user_id;index:idx_histories_user_id"`
	Datetime  time.Time       `db:"datetime"   gorm:"column:datetime"`
	Value     decimal.Decimal `db:"value"      gorm:"column:value;type:numeric(12,2)"`
	CreatedAt *time.Time      `db:"created_at" gorm:"column:created_at"`
	UpdatedAt *time.Time      `db:"updated_at" gorm:"column:updated_at"`
}

// TableName pins the gorm table name.
func (History) TableName() string {
	return "histories"
}

// HistoryPatch is a partial update. A nil field is left untouched.
type HistoryPatch struct {
	Datetime *time.Time
	Value    *decimal.Decimal
}

// Empty reports whether the patch would change nothing.
func (p HistoryPatch) Empty() bool {
	return p.Datetime == nil && p.Value == nil
}
