package flow

import "fmt"

// texts holds the system phrasing per language. English is the fallback for any
// key a language does not define.
var texts = map[string]map[string]string{
	"en": {
		"welcome_new":         "Namaste! I can help you find government schemes you qualify for and apply to them.",
		"welcome_back":        "Welcome back, %s! Ask me about schemes, applications or their status.",
		"help":                "You can say: register, show me schemes, tell me about a scheme, apply, or check my application status.",
		"ask_language":        "Which language would you like to use? (English, Hindi, Tamil, Telugu, Bengali, Marathi, Gujarati, Kannada, Malayalam, Punjabi, Odia)",
		"ask_name":            "What is your full name?",
		"ask_age":             "How old are you?",
		"ask_state":           "Which state do you live in?",
		"ask_district":        "Which district do you live in?",
		"ask_occupation":      "What is your occupation? (for example farmer, student, labourer, street vendor)",
		"ask_income_category": "What is your yearly family income? (for example BPL, below 1 lakh, below 5 lakh, above 8 lakh)",
		"invalid_language":    "Sorry, I don't support that language yet.",
		"invalid_name":        "Please tell me your name using letters only.",
		"invalid_age":         "Please tell me your age as a number between 1 and 120.",
		"invalid_state":       "I couldn't recognise that state. Please type the full state name, like Bihar or Tamil Nadu.",
		"invalid_district":    "Please type your district name using letters only.",
		"invalid_occupation":  "I couldn't recognise that occupation. Try farmer, student, labourer, street vendor, self employed, salaried, homemaker, retired or unemployed.",
		"invalid_income":      "Please give your yearly family income as BPL or an amount, like 'below 2.5 lakh'.",
		"registration_start":  "Let's create your profile. It takes about a minute.",
		"registration_done":   "Thank you %s, your profile is ready.",
		"registration_resume": "Let's continue your registration where we left off.",
		"need_profile":        "I need a few details about you first.",
		"search_header":       "You may be eligible for these schemes:",
		"search_item":         "%d. %s - %s",
		"search_footer":       "Reply with the number or name of a scheme to know more, or say 'apply' to start an application.",
		"search_none":         "I couldn't find any scheme you qualify for right now. I'll let you know when new schemes match your profile.",
		"catalog_unavailable": "I can't check schemes right now. Please try again in a few minutes.",
		"resume_hint":         "Say 'continue %s' to pick up where you left off.",
		"details_which":       "Which scheme would you like to know about?",
		"details":             "%s\n%s\nBenefit: %s\nDocuments: %s\nHow to apply: %s",
		"details_eligible":    "You appear to be eligible for this scheme.",
		"details_ineligible":  "You don't qualify for this scheme because: %s",
		"details_register":    "Register to find out whether you qualify.",
		"deadline":            "Last date: %s",
		"app_which":           "Which scheme would you like to apply for?",
		"app_ineligible":      "You can't apply for %s because: %s",
		"app_start":           "Starting your application for %s.",
		"app_resume":          "Let's continue your application for %s.",
		"app_ask_field":       "Please provide your %s.",
		"app_invalid_field":   "That doesn't look like a valid %s. %s",
		"app_summary":         "Please check your application for %s:\n%s\nReply YES to submit or CANCEL to stop.",
		"app_confirm_again":   "Reply YES to submit or CANCEL to stop.",
		"app_submitted":       "Your application for %s has been submitted. Your application ID is %s.",
		"app_cancelled":       "Okay, I've cancelled the application.",
		"status_none":         "You haven't submitted any applications yet.",
		"status_header":       "Your applications:",
		"status_item":         "- %s (%s): %s",
		"status_changed":      "Update on your application for %s (%s): %s.",
		"new_matches":         "Good news! Based on your updated profile you may now qualify for: %s",
		"clarify":             "Sorry, I didn't understand that. %s",
		"escalate":            "I'm having trouble understanding. I'm connecting you with a support person who will help you shortly.",
		"escalate_validation": "I'm connecting you with a support person who can help you complete this.",
		"language_changed":    "Okay, I'll talk to you in English from now on.",
		"try_again":           "Sorry, something went wrong. Please try again.",
		"field_language":            "language",
		"field_name":                "full name",
		"field_age":                 "age",
		"field_gender":              "gender (male, female or other)",
		"field_state":               "state",
		"field_district":            "district",
		"field_occupation":          "occupation",
		"field_income_category":     "yearly family income",
		"field_social_category":     "social category (General, OBC, SC, ST or EWS)",
		"field_family_size":         "number of family members",
		"field_mobile_number":       "10-digit mobile number",
		"field_aadhaar_number":      "12-digit Aadhaar number",
		"field_bank_account_number": "bank account number",
		"field_ifsc_code":           "bank IFSC code",
		"field_pincode":             "6-digit PIN code",
		"field_land_area_acres":     "land area in acres",
		"field_address":             "address",

		"flow_registration": "registration",
		"flow_application":  "application",

		"status_submitted":          "submitted",
		"status_under_review":       "under review",
		"status_approved":           "approved",
		"status_rejected":           "rejected",
		"status_documents_required": "documents required",
	},
	"hi": {
		"welcome_new":         "नमस्ते! मैं आपको उन सरकारी योजनाओं को खोजने और उनमें आवेदन करने में मदद कर सकता हूँ जिनके लिए आप पात्र हैं।",
		"welcome_back":        "फिर से स्वागत है, %s! योजनाओं, आवेदन या उनकी स्थिति के बारे में पूछिए।",
		"help":                "आप कह सकते हैं: पंजीकरण, योजनाएँ दिखाओ, किसी योजना के बारे में बताओ, आवेदन करो, या मेरे आवेदन की स्थिति।",
		"ask_language":        "आप किस भाषा का उपयोग करना चाहेंगे? (English, हिंदी, தமிழ், తెలుగు, বাংলা, मराठी)",
		"ask_name":            "आपका पूरा नाम क्या है?",
		"ask_age":             "आपकी उम्र क्या है?",
		"ask_state":           "आप किस राज्य में रहते हैं?",
		"ask_district":        "आप किस ज़िले में रहते हैं?",
		"ask_occupation":      "आपका व्यवसाय क्या है? (जैसे किसान, छात्र, मज़दूर, रेहड़ी-पटरी विक्रेता)",
		"ask_income_category": "आपके परिवार की सालाना आय कितनी है? (जैसे BPL, 1 लाख से कम, 5 लाख से कम, 8 लाख से ज़्यादा)",
		"invalid_age":         "कृपया अपनी उम्र 1 से 120 के बीच एक संख्या में बताइए।",
		"invalid_state":       "मैं यह राज्य पहचान नहीं पाया। कृपया पूरा नाम लिखें, जैसे बिहार या तमिलनाडु।",
		"registration_start":  "चलिए आपकी प्रोफ़ाइल बनाते हैं। इसमें लगभग एक मिनट लगेगा।",
		"registration_done":   "धन्यवाद %s, आपकी प्रोफ़ाइल तैयार है।",
		"registration_resume": "चलिए वहीं से पंजीकरण जारी रखते हैं जहाँ हमने छोड़ा था।",
		"need_profile":        "पहले मुझे आपके बारे में कुछ जानकारी चाहिए।",
		"search_header":       "आप इन योजनाओं के लिए पात्र हो सकते हैं:",
		"search_footer":       "किसी योजना के बारे में जानने के लिए उसका नंबर या नाम भेजें, या आवेदन शुरू करने के लिए 'आवेदन' कहें।",
		"search_none":         "अभी मुझे ऐसी कोई योजना नहीं मिली जिसके लिए आप पात्र हों।",
		"catalog_unavailable": "मैं अभी योजनाएँ नहीं देख पा रहा हूँ। कृपया कुछ मिनट बाद फिर से कोशिश करें।",
		"details_which":       "आप किस योजना के बारे में जानना चाहते हैं?",
		"details_eligible":    "आप इस योजना के लिए पात्र लगते हैं।",
		"details_ineligible":  "आप इस योजना के लिए पात्र नहीं हैं क्योंकि: %s",
		"app_which":           "आप किस योजना के लिए आवेदन करना चाहते हैं?",
		"app_ask_field":       "कृपया अपना %s बताइए।",
		"app_summary":         "कृपया %s के लिए अपना आवेदन जाँचें:\n%s\nजमा करने के लिए YES या रोकने के लिए CANCEL लिखें।",
		"app_submitted":       "%s के लिए आपका आवेदन जमा हो गया है। आपकी आवेदन संख्या %s है।",
		"app_cancelled":       "ठीक है, मैंने आवेदन रद्द कर दिया है।",
		"status_none":         "आपने अभी तक कोई आवेदन नहीं किया है।",
		"status_header":       "आपके आवेदन:",
		"clarify":             "माफ़ कीजिए, मैं समझ नहीं पाया। %s",
		"escalate":            "मुझे समझने में कठिनाई हो रही है। मैं आपको एक सहायक से जोड़ रहा हूँ।",
		"language_changed":    "ठीक है, अब से मैं आपसे हिंदी में बात करूँगा।",
		"try_again":           "माफ़ कीजिए, कुछ गड़बड़ हो गई। कृपया फिर से कोशिश करें।",

		"field_name":                "पूरा नाम",
		"field_age":                 "उम्र",
		"field_state":               "राज्य",
		"field_district":            "ज़िला",
		"field_aadhaar_number":      "12 अंकों का आधार नंबर",
		"field_bank_account_number": "बैंक खाता नंबर",
		"field_ifsc_code":           "बैंक IFSC कोड",

		"flow_registration": "पंजीकरण",
		"flow_application":  "आवेदन",
	},
}

// Text renders key in lang, falling back to English.
func Text(lang, key string, args ...interface{}) string {
	tmpl, ok := texts[lang][key]
	if !ok {
		tmpl, ok = texts["en"][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
