package flow

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// FormFiller prefills application forms from a profile and validates what the
// user types for the rest.
type FormFiller interface {
	AutoFill(p models.Profile, fields []string) (filled map[string]string, missing []string)
	Validate(field, value string) error
	// Normalize validates value and returns the form it is stored in.
	Normalize(field, value string) (string, error)
	// FreeText reports whether any non-empty reply is accepted for field.
	FreeText(field string) bool
}

// DefaultFormFields is used for schemes that do not declare their own form.
var DefaultFormFields = []string{"name", "age", "state", "district", "aadhaar_number", "bank_account_number", "ifsc_code"}

var (
	ErrFieldRequired = errors.New("a value is required")
	ErrFieldFormat   = errors.New("the format is not valid")
)

type formField struct {
	freeText bool
	check    func(string) (string, error)
	profile  func(models.Profile) string
}

var (
	aadhaarRe = regexp.MustCompile(`^\d{12}$`)
	accountRe = regexp.MustCompile(`^\d{9,18}$`)
	ifscRe    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	mobileRe  = regexp.MustCompile(`^(\+?91)?[6-9]\d{9}$`)
	pincodeRe = regexp.MustCompile(`^[1-9]\d{5}$`)
)

func fromValidator(parse func(string) (string, error)) func(string) (string, error) {
	return func(v string) (string, error) {
		out, err := parse(v)
		if err != nil {
			return "", ErrFieldFormat
		}
		return out, nil
	}
}

// matches compares with spaces and dashes removed and letters upper-cased, and
// returns that compact form.
func matches(re *regexp.Regexp) func(string) (string, error) {
	return func(v string) (string, error) {
		v = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(v))
		if !re.MatchString(v) {
			return "", ErrFieldFormat
		}
		return v, nil
	}
}

func positiveNumber(v string) (string, error) {
	v = strings.TrimSpace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return "", ErrFieldFormat
	}
	return v, nil
}

var formFields = map[string]formField{
	"name":                {freeText: true, check: fromValidator(parseName), profile: func(p models.Profile) string { return p.Name }},
	"age":                 {check: fromValidator(parseAge), profile: func(p models.Profile) string { return intOrEmpty(p.Age) }},
	"gender":              {check: oneOf("male", "female", "other"), profile: func(p models.Profile) string { return p.Gender }},
	"state":               {check: fromValidator(parseState), profile: func(p models.Profile) string { return p.State }},
	"district":            {freeText: true, check: fromValidator(parsePlace), profile: func(p models.Profile) string { return p.District }},
	"occupation":          {check: fromValidator(parseOccupation), profile: func(p models.Profile) string { return p.Occupation }},
	"income_category":     {check: fromValidator(parseIncome), profile: func(p models.Profile) string { return p.IncomeCategory }},
	"social_category":     {check: oneOf("general", "obc", "sc", "st", "ews"), profile: func(p models.Profile) string { return p.SocialCategory }},
	"family_size":         {check: positiveNumber, profile: func(p models.Profile) string { return intOrEmpty(p.FamilySize) }},
	"mobile_number":       {check: matches(mobileRe), profile: func(p models.Profile) string { return phoneOf(p.Identity) }},
	"aadhaar_number":      {check: matches(aadhaarRe)},
	"bank_account_number": {check: matches(accountRe)},
	"ifsc_code":           {check: matches(ifscRe)},
	"pincode":             {check: matches(pincodeRe)},
	"land_area_acres":     {check: positiveNumber},
	"address":             {freeText: true},
}

func oneOf(values ...string) func(string) (string, error) {
	return func(v string) (string, error) {
		v = strings.ToLower(strings.TrimSpace(v))
		for _, ok := range values {
			if v == ok {
				return v, nil
			}
		}
		return "", ErrFieldFormat
	}
}

func intOrEmpty(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func phoneOf(identity string) string {
	if mobileRe.MatchString(identity) {
		return identity
	}
	return ""
}

// ProfileFormFiller fills forms from the known profile attributes.
type ProfileFormFiller struct{}

func (ProfileFormFiller) AutoFill(p models.Profile, fields []string) (map[string]string, []string) {
	filled := make(map[string]string, len(fields))
	var missing []string
	for _, f := range fields {
		def, ok := formFields[f]
		if ok && def.profile != nil {
			if v := def.profile(p); v != "" {
				filled[f] = v
				continue
			}
		}
		missing = append(missing, f)
	}
	return filled, missing
}

func (f ProfileFormFiller) Validate(field, value string) error {
	_, err := f.Normalize(field, value)
	return err
}

// Normalize returns the canonical form of a valid value: IFSC codes upper-cased,
// numbers without spaces or dashes, states and occupations in their stored
// spelling. Fields without a known format are only trimmed.
func (ProfileFormFiller) Normalize(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrFieldRequired
	}
	def, ok := formFields[field]
	if !ok || def.check == nil {
		return value, nil
	}
	return def.check(value)
}

// FreeText is true for fields without a known format, including unknown ones.
func (ProfileFormFiller) FreeText(field string) bool {
	def, ok := formFields[field]
	return !ok || def.freeText || def.check == nil
}
