package models

import (
	"strings"
	"unicode/utf8"
)

const maxDisplayName = 20

// UserAccount is one row of the account list.
type UserAccount struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName renders "Фамилия И.О." capped at 20 runes, or the capitalized
// username when the account has no name.
func (u UserAccount) DisplayName() string {
	if u.LastName != "" && u.FirstName != "" {
		var b strings.Builder
		b.WriteString(capitalize(u.LastName))
		b.WriteString(" ")
		parts := strings.Fields(u.FirstName)
		if len(parts) > 0 {
			r, _ := utf8.DecodeRuneInString(parts[0])
			b.WriteString(strings.ToUpper(string(r)))
		}
		b.WriteString(".")
		if len(parts) > 1 {
			r, _ := utf8.DecodeRuneInString(parts[1])
			b.WriteString(strings.ToUpper(string(r)))
			b.WriteString(".")
		}
		runes := []rune(b.String())
		if len(runes) > maxDisplayName {
			runes = runes[:maxDisplayName]
		}
		return string(runes)
	}
	return capitalize(u.Username)
}

// UserFilter is the query of the account list.
type UserFilter struct {
	Search string `form:"search" json:"search"`
	Role   string `form:"role" json:"role" validate:"omitempty,oneof=a admin user"`
	Status string `form:"status" json:"status" validate:"omitempty,oneof=a active inactive"`
	Sort   string `form:"sort" json:"sort" validate:"omitempty,oneof=asc desc"`
}

// UserForm is the multipart body of the add and edit account endpoints.
type UserForm struct {
	Username         string `json:"username" validate:"required,max=150"`
	Email            string `json:"email" validate:"omitempty,email"`
	FullName         string `json:"full_name" validate:"omitempty,fullname"`
	IsStaff          bool   `json:"is_staff"`
	IsActive         bool   `json:"is_active"`
	GeneratePassword bool   `json:"generate_password"`
	ChangePassword   bool   `json:"change_password"`
	Password1        string `json:"password1" validate:"omitempty,password"`
	Password2        string `json:"password2" validate:"omitempty,eqfield=Password1"`
}

// PasswordChangeForm is the body of the own password change page.
type PasswordChangeForm struct {
	OldPassword  string `json:"old_password" validate:"required"`
	NewPassword1 string `json:"new_password1" validate:"required"`
	NewPassword2 string `json:"new_password2" validate:"required,eqfield=NewPassword1"`
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}
