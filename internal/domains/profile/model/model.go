package model

import "consult/shared/model"

const (
	TableName  = "profiles"
	EntityName = "profile"

	FieldID       = "id"
	FieldFullName = "full_name"
	FieldEmail    = "email"
	FieldMobile   = "mobile"
	FieldActive   = "active"
)

type Profile struct {
	ID       string `db:"id"`
	FullName string `db:"full_name"`
	Email    string `db:"email"`
	Mobile   string `db:"mobile"`
	Active   bool   `db:"active"`
	model.Metadata
}
