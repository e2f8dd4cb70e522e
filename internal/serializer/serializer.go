package serializer

import (
	"github.com/sakif/history-api/internal/model"
)

// WireHistory is the JSON shape of a history record.
//
// CreatedAt/UpdatedAt are pointers WITHOUT omitempty: a missing timestamp is
// sent as null so clients always see the same set of keys.
type WireHistory struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Datetime  string  `json:"datetime"`
	Value     float64 `json:"value"`
	CreatedAt *string `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

// WireUser is the JSON shape of a user.
type WireUser struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"displayName"`
	CreatedAt   *string `json:"createdAt"`
	UpdatedAt   *string `json:"updatedAt"`
}

// History converts a storage row into its wire form.
func History(h model.History) WireHistory {
	return WireHistory{
		ID:        h.ID,
		UserID:    h.UserID,
		Datetime:  FormatISO(h.Datetime),
		Value:     h.Value.InexactFloat64(),
		CreatedAt: formatNullable(h.CreatedAt),
		UpdatedAt: formatNullable(h.UpdatedAt),
	}
}

// Histories converts a slice of rows. The result is never nil, so an empty
// list encodes as [] instead of null.
func Histories(rows []model.History) []WireHistory {
	out := make([]WireHistory, 0, len(rows))
	for _, h := range rows {
		out = append(out, History(h))
	}
	return out
}

// User converts a storage row into its wire form.
func User(u model.User) WireUser {
	return WireUser{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   formatNullable(u.CreatedAt),
		UpdatedAt:   formatNullable(u.UpdatedAt),
	}
}
