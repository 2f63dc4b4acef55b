package products

import (
	"sort"
	"strings"
)

// symptomCategories maps a symptom keyword to the catalog category that treats it.
var symptomCategories = map[string]string{
	"headache":     "Pain Relief",
	"migraine":     "Pain Relief",
	"pain":         "Pain Relief",
	"back pain":    "Pain Relief",
	"toothache":    "Pain Relief",
	"fever":        "Pain Relief",
	"cramps":       "Pain Relief",
	"cold":         "Cold & Flu",
	"flu":          "Cold & Flu",
	"cough":        "Cold & Flu",
	"sore throat":  "Cold & Flu",
	"congestion":   "Cold & Flu",
	"runny nose":   "Cold & Flu",
	"allergy":      "Allergy",
	"allergies":    "Allergy",
	"sneezing":     "Allergy",
	"hay fever":    "Allergy",
	"itchy eyes":   "Allergy",
	"heartburn":    "Digestive Health",
	"indigestion":  "Digestive Health",
	"constipation": "Digestive Health",
	"diarrhea":     "Digestive Health",
	"nausea":       "Digestive Health",
	"rash":         "Skin Care",
	"acne":         "Skin Care",
	"dry skin":     "Skin Care",
	"eczema":       "Skin Care",
	"insomnia":     "Sleep Aid",
	"sleep":        "Sleep Aid",
	"fatigue":      "Vitamins & Supplements",
	"tired":        "Vitamins & Supplements",
	"diabetes":     "Diabetes Care",
	"blood sugar":  "Diabetes Care",
}

// keywordsByLength orders keywords longest first so "hay fever" wins over "fever".
var keywordsByLength = func() []string {
	keys := make([]string, 0, len(symptomCategories))
	for k := range symptomCategories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// CategoryForSymptom returns the category for a symptom. Matching is
// case-insensitive and tolerates simple plurals ("headaches").
func CategoryForSymptom(symptom string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(symptom))
	if s == "" {
		return "", false
	}
	if c, ok := symptomCategories[s]; ok {
		return c, true
	}
	for _, candidate := range []string{strings.TrimSuffix(s, "es"), strings.TrimSuffix(s, "s")} {
		if c, ok := symptomCategories[candidate]; ok {
			return c, true
		}
	}
	for _, keyword := range keywordsByLength {
		if strings.Contains(s, keyword) {
			return symptomCategories[keyword], true
		}
	}
	return "", false
}
