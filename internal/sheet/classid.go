package sheet

import (
	"regexp"
	"strings"

	"examcal/internal/apperr"
)

var (
	classIDRe   = regexp.MustCompile(`^[BQFP][0-9]{6}$`)
	studentIDRe = regexp.MustCompile(`^[BQF][0-9]{8}$`)
)

// NormalizeClassID validates an administrative class id. A student id
// (class id plus a two-digit seat number) is accepted and cut down to the
// class id it belongs to.
func NormalizeClassID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case classIDRe.MatchString(id):
		return id, nil
	case studentIDRe.MatchString(id):
		return id[:7], nil
	default:
		return "", apperr.New(apperr.Validation, "行政班ID格式不正确，请重新检查！")
	}
}
