package service

import (
	"strings"

	"github.com/molinacode/padel-crm-api/internal/models"
)

// ResolveOrigin derives an enrollment origin from the class name. Names
// containing "escuela" are school-billed, names containing "interna" are
// internal; anything else defaults to school.
func ResolveOrigin(className string) models.EnrollmentOrigin {
	name := strings.ToLower(className)
	if strings.Contains(name, string(models.OriginSchool)) {
		return models.OriginSchool
	}
	if strings.Contains(name, string(models.OriginInternal)) {
		return models.OriginInternal
	}
	return models.OriginSchool
}

// MajorityOrigin returns the most frequent origin in the list. Ties break
// toward the value that reached the maximum count first during a single
// left-to-right scan. Empty input returns "".
func MajorityOrigin(origins []models.EnrollmentOrigin) models.EnrollmentOrigin {
	if len(origins) == 0 {
		return ""
	}
	counts := make(map[models.EnrollmentOrigin]int, 2)
	var winner models.EnrollmentOrigin
	best := 0
	for _, origin := range origins {
		counts[origin]++
		if counts[origin] > best {
			best = counts[origin]
			winner = origin
		}
	}
	return winner
}
