package flow

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var errInvalid = errors.New("invalid value")

// Registration fields in the order they are asked.
const (
	FieldLanguage       = "language"
	FieldName           = "name"
	FieldAge            = "age"
	FieldState          = "state"
	FieldDistrict       = "district"
	FieldOccupation     = "occupation"
	FieldIncomeCategory = "income_category"
)

var registrationFields = []string{
	FieldLanguage, FieldName, FieldAge, FieldState, FieldDistrict, FieldOccupation, FieldIncomeCategory,
}

type validator struct {
	check func(string) (string, error)
	// freeText validators accept nearly any wording, so a reply is never treated
	// as an implicit answer to an interrupted flow on their say-so.
	freeText   bool
	invalidKey string
}

var validators = map[string]validator{
	FieldLanguage:       {check: parseLanguage, invalidKey: "invalid_language"},
	FieldName:           {check: parseName, freeText: true, invalidKey: "invalid_name"},
	FieldAge:            {check: parseAge, invalidKey: "invalid_age"},
	FieldState:          {check: parseState, invalidKey: "invalid_state"},
	FieldDistrict:       {check: parsePlace, freeText: true, invalidKey: "invalid_district"},
	FieldOccupation:     {check: parseOccupation, invalidKey: "invalid_occupation"},
	FieldIncomeCategory: {check: parseIncome, invalidKey: "invalid_income"},
}

var languages = map[string]string{
	"en": "en", "english": "en", "angrezi": "en",
	"hi": "hi", "hindi": "hi", "हिंदी": "hi", "हिन्दी": "hi",
	"ta": "ta", "tamil": "ta", "தமிழ்": "ta",
	"te": "te", "telugu": "te", "తెలుగు": "te",
	"bn": "bn", "bengali": "bn", "bangla": "bn", "বাংলা": "bn",
	"mr": "mr", "marathi": "mr", "मराठी": "mr",
	"gu": "gu", "gujarati": "gu", "ગુજરાતી": "gu",
	"kn": "kn", "kannada": "kn", "ಕನ್ನಡ": "kn",
	"ml": "ml", "malayalam": "ml", "മലയാളം": "ml",
	"pa": "pa", "punjabi": "pa", "ਪੰਜਾਬੀ": "pa",
	"or": "or", "odia": "or", "oriya": "or", "ଓଡ଼ିଆ": "or",
}

// LanguageCode maps a language name or code, in English or its own script, to its code.
func LanguageCode(v string) (string, bool) {
	code, err := parseLanguage(v)
	return code, err == nil
}

func parseLanguage(v string) (string, error) {
	v = strings.ToLower(strings.Trim(strings.TrimSpace(v), ".!"))
	if code, ok := languages[v]; ok {
		return code, nil
	}
	for _, word := range strings.Fields(v) {
		if code, ok := languages[word]; ok && len(word) > 2 {
			return code, nil
		}
	}
	return "", errInvalid
}

func parseName(v string) (string, error) {
	v = strings.Join(strings.Fields(v), " ")
	if n := len([]rune(v)); n < 2 || n > 60 {
		return "", errInvalid
	}
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsMark(r) && r != ' ' && r != '.' && r != '\'' && r != '-' {
			return "", errInvalid
		}
	}
	return v, nil
}

func parsePlace(v string) (string, error) {
	name, err := parseName(v)
	if err != nil {
		return "", err
	}
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " "), nil
}

var numberRe = regexp.MustCompile(`\d+(\.\d+)?`)

func parseAge(v string) (string, error) {
	m := numberRe.FindString(v)
	if m == "" {
		return "", errInvalid
	}
	age, err := strconv.Atoi(m)
	if err != nil || age < 1 || age > 120 {
		return "", errInvalid
	}
	return strconv.Itoa(age), nil
}

var states = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh", "Goa", "Gujarat",
	"Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka", "Kerala", "Madhya Pradesh",
	"Maharashtra", "Manipur", "Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan",
	"Sikkim", "Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
	"Andaman and Nicobar Islands", "Chandigarh", "Dadra and Nagar Haveli and Daman and Diu",
	"Delhi", "Jammu and Kashmir", "Ladakh", "Lakshadweep", "Puducherry",
}

var stateAliases = map[string]string{
	"up": "Uttar Pradesh", "mp": "Madhya Pradesh", "ap": "Andhra Pradesh", "tn": "Tamil Nadu",
	"wb": "West Bengal", "j&k": "Jammu and Kashmir", "jk": "Jammu and Kashmir", "hp": "Himachal Pradesh",
	"orissa": "Odisha", "pondicherry": "Puducherry", "new delhi": "Delhi", "bengal": "West Bengal",
	"tamilnadu": "Tamil Nadu", "बिहार": "Bihar", "उत्तर प्रदेश": "Uttar Pradesh", "तमिलनाडु": "Tamil Nadu",
	"राजस्थान": "Rajasthan", "महाराष्ट्र": "Maharashtra",
}

func parseState(v string) (string, error) {
	key := strings.ToLower(strings.Join(strings.Fields(strings.Trim(v, ".!")), " "))
	if s, ok := stateAliases[key]; ok {
		return s, nil
	}
	for _, s := range states {
		if strings.ToLower(s) == key {
			return s, nil
		}
	}
	for _, s := range states {
		if key != "" && strings.Contains(key, strings.ToLower(s)) {
			return s, nil
		}
	}
	return "", errInvalid
}

var occupationAliases = map[string]string{
	"farmer": "farmer", "farming": "farmer", "kisan": "farmer", "agriculture": "farmer", "किसान": "farmer",
	"farm labourer": "agricultural_labourer", "agricultural labourer": "agricultural_labourer", "khet mazdoor": "agricultural_labourer",
	"student": "student", "chhatra": "student", "छात्र": "student",
	"labourer": "labourer", "laborer": "labourer", "labour": "labourer", "daily wage": "labourer", "mazdoor": "labourer", "मज़दूर": "labourer", "मजदूर": "labourer",
	"construction worker": "construction_worker", "mason": "construction_worker",
	"street vendor": "street_vendor", "vendor": "street_vendor", "hawker": "street_vendor",
	"fisherman": "fisherman", "fisher": "fisherman", "fishing": "fisherman",
	"artisan": "artisan", "weaver": "artisan", "craftsman": "artisan", "carpenter": "artisan",
	"self employed": "self_employed", "business": "self_employed", "shopkeeper": "self_employed",
	"salaried": "salaried", "employee": "salaried", "job": "salaried", "service": "salaried",
	"homemaker": "homemaker", "housewife": "homemaker", "गृहिणी": "homemaker",
	"retired": "retired", "pensioner": "retired",
	"unemployed": "unemployed", "no job": "unemployed", "berozgar": "unemployed",
}

func parseOccupation(v string) (string, error) {
	key := strings.ToLower(strings.Join(strings.Fields(strings.Trim(v, ".!")), " "))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	if o, ok := occupationAliases[key]; ok {
		return o, nil
	}
	// longest alias contained in the reply wins, so "farm labourer" beats "labourer"
	best := ""
	for alias := range occupationAliases {
		if len(alias) > len(best) && containsWord(key, alias) {
			best = alias
		}
	}
	if best != "" {
		return occupationAliases[best], nil
	}
	return "", errInvalid
}

func containsWord(s, phrase string) bool {
	idx := strings.Index(s, phrase)
	for idx >= 0 {
		beforeOK := idx == 0 || s[idx-1] == ' '
		end := idx + len(phrase)
		afterOK := end == len(s) || s[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(s[idx+1:], phrase)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

// Income categories, yearly family income in rupees.
const (
	IncomeBPL       = "BPL"
	IncomeBelow1L   = "below_1L"
	IncomeBelow2_5L = "below_2.5L"
	IncomeBelow5L   = "below_5L"
	IncomeBelow8L   = "below_8L"
	IncomeAbove8L   = "above_8L"

	lakh = 100000.0
)

var incomeCodes = []string{IncomeBPL, IncomeBelow1L, IncomeBelow2_5L, IncomeBelow5L, IncomeBelow8L, IncomeAbove8L}

func parseIncome(v string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(v))
	for _, code := range incomeCodes {
		if raw == strings.ToLower(code) || raw == strings.ToLower(strings.ReplaceAll(code, "_", " ")) {
			return code, nil
		}
	}
	if strings.Contains(raw, "bpl") || strings.Contains(raw, "below poverty") || strings.Contains(raw, "garib") {
		return IncomeBPL, nil
	}

	m := numberRe.FindString(raw)
	if m == "" {
		if strings.Contains(raw, "no income") || raw == "nil" || raw == "zero" {
			return IncomeBelow1L, nil
		}
		return "", errInvalid
	}
	amount, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "", errInvalid
	}
	unit := strings.TrimSpace(raw[strings.Index(raw, m)+len(m):])
	switch {
	case strings.HasPrefix(unit, "l") || strings.HasPrefix(unit, "लाख"):
		amount *= lakh
	case strings.HasPrefix(unit, "k") || strings.HasPrefix(unit, "thousand") || strings.HasPrefix(unit, "hazar") || strings.HasPrefix(unit, "हज़ार"):
		amount *= 1000
	}

	above := strings.Contains(raw, "above") || strings.Contains(raw, "more than") || strings.Contains(raw, "over")
	switch {
	case above && amount >= 8*lakh:
		return IncomeAbove8L, nil
	case amount <= 1*lakh:
		return IncomeBelow1L, nil
	case amount <= 2.5*lakh:
		return IncomeBelow2_5L, nil
	case amount <= 5*lakh:
		return IncomeBelow5L, nil
	case amount <= 8*lakh && !above:
		return IncomeBelow8L, nil
	default:
		return IncomeAbove8L, nil
	}
}
