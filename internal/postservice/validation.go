package postservice

import (
	"strings"
	"unicode/utf8"

	"github.com/sushihentaime/quillpost/internal/common"
)

func validateTitle(v *common.Validator, title string) {
	v.Check(strings.TrimSpace(title) != "", "title", "must be provided")
	v.Check(utf8.RuneCountInString(title) <= 200, "title", "must not be more than 200 characters long")
}

func validateContent(v *common.Validator, content string) {
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
}

func validateTags(v *common.Validator, raw string) {
	for _, name := range ParseTagList(raw) {
		if utf8.RuneCountInString(name) > 50 {
			v.AddError("tags", "each tag must not be more than 50 characters long")
			return
		}
	}
}
