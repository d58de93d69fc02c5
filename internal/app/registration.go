package app

import (
	"strings"
	"time"

	"contest-service/internal/domain"
)

// CheckRegistration applies the registration window, capacity and
// eligibility rules in that order. registered is the current participant count.
func CheckRegistration(contest domain.ContestDefinition, reg domain.Registration, registered int, now time.Time) error {
	if !contest.RegistrationStartAt.IsZero() && now.Before(contest.RegistrationStartAt) {
		return domain.Forbiddenf("registration opens at %s", contest.RegistrationStartAt.UTC().Format(time.RFC3339))
	}
	if !contest.RegistrationEndAt.IsZero() {
		closes := contest.RegistrationEndAt.Add(time.Duration(contest.GracePeriodSeconds) * time.Second)
		if now.After(closes) {
			return domain.Forbiddenf("registration closed at %s", closes.UTC().Format(time.RFC3339))
		}
	}
	if contest.MaxParticipants > 0 && registered >= contest.MaxParticipants {
		return domain.Forbiddenf("registration is full, maximum of %d participants reached", contest.MaxParticipants)
	}

	rules := contest.Eligibility
	if rules.MinAge > 0 && reg.Age < rules.MinAge {
		return domain.Forbiddenf("minimum age is %d", rules.MinAge)
	}
	if rules.MaxAge > 0 && reg.Age > rules.MaxAge {
		return domain.Forbiddenf("maximum age is %d", rules.MaxAge)
	}
	if len(rules.AllowedCountries) > 0 && !containsFold(rules.AllowedCountries, reg.Country) {
		return domain.Forbiddenf("country %q is not eligible", reg.Country)
	}
	if rules.SchoolRequired && reg.EntrySource != domain.EntryOrganisation {
		return domain.Forbiddenf("contest requires entry through a school or organisation")
	}

	for _, lang := range reg.SelectedLanguages {
		if !contest.SupportsLanguage(lang) {
			return domain.Invalidf("language %q is not supported by contest %s", lang, contest.ID)
		}
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
