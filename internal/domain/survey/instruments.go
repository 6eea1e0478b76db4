package survey

// Instrument codes.
const (
	CodeMSF = "msf"
	CodePSQ = "psq"
)

// MSF topic keys.
const (
	TopicGoodClinicalCare      = "good_clinical_care"
	TopicMaintainingTrust      = "maintaining_trust"
	TopicWorkingWithColleagues = "working_with_colleagues"
)

const defaultRecentLimit = 10

// MSF returns the multi-source feedback instrument: 17 questions in 3 topics.
func MSF() Questionnaire {
	return Questionnaire{
		Code:  CodeMSF,
		Title: "Multi-Source Feedback",
		Questions: []Question{
			{Key: "clinical_knowledge", Text: "Applies clinical knowledge appropriately"},
			{Key: "diagnosis", Text: "Reaches sound diagnoses"},
			{Key: "treatment_planning", Text: "Plans treatment appropriate to the patient"},
			{Key: "clinical_skills", Text: "Performs procedures competently"},
			{Key: "record_keeping", Text: "Keeps clear and accurate records"},
			{Key: "infection_control", Text: "Follows infection control procedures"},

			{Key: "respect_for_patients", Text: "Treats patients with respect and dignity"},
			{Key: "communication_with_patients", Text: "Communicates clearly with patients"},
			{Key: "consent_confidentiality", Text: "Obtains valid consent and respects confidentiality"},
			{Key: "honesty_integrity", Text: "Acts with honesty and integrity"},
			{Key: "reliability", Text: "Is reliable and punctual"},

			{Key: "teamwork", Text: "Works effectively within the dental team"},
			{Key: "communication_with_colleagues", Text: "Communicates clearly with colleagues"},
			{Key: "accepts_feedback", Text: "Accepts and acts on feedback"},
			{Key: "supports_others", Text: "Supports and teaches others"},
			{Key: "time_management", Text: "Manages time and workload"},
			{Key: "leadership", Text: "Shows leadership when required"},
		},
		Topics: []Topic{
			{
				Key:   TopicGoodClinicalCare,
				Title: "Good clinical care",
				Questions: []string{
					"clinical_knowledge", "diagnosis", "treatment_planning",
					"clinical_skills", "record_keeping", "infection_control",
				},
			},
			{
				Key:   TopicMaintainingTrust,
				Title: "Maintaining trust",
				Questions: []string{
					"respect_for_patients", "communication_with_patients",
					"consent_confidentiality", "honesty_integrity", "reliability",
				},
			},
			{
				Key:   TopicWorkingWithColleagues,
				Title: "Working with colleagues",
				Questions: []string{
					"teamwork", "communication_with_colleagues", "accepts_feedback",
					"supports_others", "time_management", "leadership",
				},
			},
		},
		Sentinel: DefaultSentinel,
		CommentFields: CommentFields{
			Positive:    "positive_feedback",
			Improvement: "improvement_suggestions",
		},
		Scale:       Scale{Min: 1, Max: 5},
		RecentLimit: defaultRecentLimit,
	}
}

// PSQ returns the patient satisfaction questionnaire: 12 questions, no topics.
func PSQ() Questionnaire {
	return Questionnaire{
		Code:  CodePSQ,
		Title: "Patient Satisfaction Questionnaire",
		Questions: []Question{
			{Key: "made_welcome", Text: "I was made to feel welcome"},
			{Key: "listened", Text: "The dentist listened to me"},
			{Key: "explained_condition", Text: "My condition was explained clearly"},
			{Key: "explained_treatment", Text: "The treatment options were explained"},
			{Key: "involved_in_decisions", Text: "I was involved in decisions about my care"},
			{Key: "answered_questions", Text: "My questions were answered"},
			{Key: "put_at_ease", Text: "The dentist put me at ease"},
			{Key: "respected_privacy", Text: "My privacy and dignity were respected"},
			{Key: "gentle_care", Text: "Treatment was carried out gently"},
			{Key: "explained_aftercare", Text: "Aftercare was explained"},
			{Key: "confidence", Text: "I had confidence in the dentist"},
			{Key: "would_recommend", Text: "I would recommend this dentist"},
		},
		Sentinel: DefaultSentinel,
		CommentFields: CommentFields{
			Positive:    "liked_most",
			Improvement: "could_improve",
		},
		Scale:       Scale{Min: 1, Max: 5},
		RecentLimit: defaultRecentLimit,
	}
}
