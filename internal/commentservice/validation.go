package commentservice

import (
	"strings"
	"unicode/utf8"

	"github.com/sushihentaime/quillpost/internal/common"
)

func validateContent(v *common.Validator, content string) {
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
	v.Check(utf8.RuneCountInString(content) <= 5000, "content", "must not be more than 5000 characters long")
}

func validateWriter(v *common.Validator, name, email string) {
	v.Check(strings.TrimSpace(name) != "", "writer_name", "must be provided")
	v.Check(utf8.RuneCountInString(name) <= 100, "writer_name", "must not be more than 100 characters long")
	common.ValidateEmail(v, "writer_email", email)
}
