package userservice

import (
	"regexp"
	"strings"

	"github.com/sushihentaime/quillpost/internal/common"
)

var (
	UppercaseRX = regexp.MustCompile("[A-Z]")
	LowercaseRX = regexp.MustCompile("[a-z]")
	NumberRX    = regexp.MustCompile("[0-9]")
	SymbolRX    = regexp.MustCompile(`[#?!@$%^&*_\\-]`)
)

func validateName(v *common.Validator, name string) {
	v.Check(strings.TrimSpace(name) != "", "name", "must be provided")
	v.Check(v.CheckStringLength(name, 2, 50), "name", "must be between 2 and 50 characters long")
}

func validateEmail(v *common.Validator, email string) {
	common.ValidateEmail(v, "email", email)
}

func validatePassword(v *common.Validator, password string) {
	v.Check(password != "", "password", "must be provided")

	value := v.CheckStringLength(password, 8, 72) && UppercaseRX.MatchString(password) && LowercaseRX.MatchString(password) && NumberRX.MatchString(password) && SymbolRX.MatchString(password)
	v.Check(value, "password", "must be between 8 and 72 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one symbol")
}

func validatePasswordConfirmation(v *common.Validator, password, confirmPassword string) {
	v.Check(confirmPassword != "", "confirm_password", "must be provided")
	v.Check(password == confirmPassword, "confirm_password", "must match password")
}

func validateRole(v *common.Validator, role common.Role) {
	v.Check(role.Valid(), "role", "must be ADMIN or AUTHOR")
}

func ValidateToken(v *common.Validator, token string) {
	v.Check(token != "", "token", "must be provided")
	v.Check(len(token) == tokenLength, "token", "invalid token")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
