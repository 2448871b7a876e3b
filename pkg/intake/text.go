package intake

import "fmt"

// messages holds the user facing strings per language. Dutch is the fallback.
var messages = map[string]map[string]string{
	"nl": {
		"greeting":                  "Hoi! Waarmee kan ik je helpen?",
		"summary_intro":             "Dit heb ik uit je bericht gehaald:",
		"confirm_prompt":            "Klopt dit?",
		"confirm_all":               "Ja, klopt",
		"correct_all":               "Alles opnieuw",
		"correct_partial":           "Iets aanpassen",
		"correction_prompt":         "Wat wil je aanpassen?",
		"looks_right":               "Zo klopt het",
		"intake_intro":              "Dan stel ik je een paar korte vragen.",
		"invalid_value":             "Dat herken ik niet, probeer het nog eens.",
		"ask_student_name":          "Wat is de naam van de leerling?",
		"ask_relationship":          "Wie ben jij voor de leerling? (zelf, ouder, docent of anders)",
		"ask_school_level":          "Op welk niveau zit de leerling? Bijvoorbeeld havo 4, vwo of mbo.",
		"ask_subject":               "Voor welk vak is er hulp nodig?",
		"ask_topic":                 "Welk onderwerp precies?",
		"ask_lesson_mode":           "Wil je online les, op locatie of allebei?",
		"ask_age_over_18":           "Is de leerling 18 jaar of ouder? (ja/nee)",
		"label_student_name":        "Naam",
		"label_relationship":        "Relatie",
		"label_school_level":        "Niveau",
		"label_subject":             "Vak",
		"label_topic":               "Onderwerp",
		"label_lesson_mode":         "Lesvorm",
		"label_age_over_18":         "18+",
		"mode_online":               "Online",
		"mode_in_person":            "Op locatie",
		"mode_hybrid":               "Allebei",
		"action_prompt":             "Top! Wat wil je nu doen?",
		"plan_trial_lesson":         "Proefles plannen",
		"plan_all_lessons":          "Lessen plannen",
		"urgent_session":            "Spoedsessie",
		"go_to_main_menu":           "Hoofdmenu",
		"handoff":                   "Met een medewerker praten",
		"plan_lesson":               "Les plannen",
		"same_preferences":          "Zelfde voorkeuren als vorige keer",
		"old_preferences":           "Mijn oude voorkeuren gebruiken",
		"info":                      "Informatie",
		"info_prompt":               "Waar wil je meer over weten?",
		"tariffs":                   "Tarieven",
		"work_method":               "Werkwijze",
		"services":                  "Vakken en diensten",
		"workshops":                 "Workshops",
		"info_tariffs":              "Tarieven\n- Proefles: gratis\n- Losse les (60 min): €60\n- Spoedsessie (90 min): €95\n- Weekendles (60 min): €65\n- MBO-traject (10 lessen): €550",
		"info_tariffs_no_mbo":       "Tarieven\n- Proefles: gratis\n- Losse les (60 min): €60\n- Spoedsessie (90 min): €95\n- Weekendles (60 min): €65\n- Examentraining (10 lessen): €550",
		"info_tariffs_adult":        "Tarieven voor volwassenen\n- Kennismaking: gratis\n- Losse les (60 min): €60\n- Spoedsessie (90 min): €95\n- MBO-traject (10 lessen): €550\n- Bedrijfstraining: op aanvraag",
		"info_tariffs_adult_no_mbo": "Tarieven voor volwassenen\n- Kennismaking: gratis\n- Losse les (60 min): €60\n- Spoedsessie (90 min): €95\n- Scriptiebegeleiding (5 sessies): €300\n- Bedrijfstraining: op aanvraag",
		"info_work_method":          "We beginnen met een gratis proefles om het niveau en de doelen te bepalen. Daarna plannen we vaste lessen, online of op locatie, met na elke les een korte terugkoppeling.",
		"info_services":             "We geven bijles in wiskunde, statistiek, natuurkunde, scheikunde, Engels en programmeren, van basisschool tot universiteit.",
		"info_workshops":            "In de examenperiode geven we workshops in kleine groepen, zoals examentraining wiskunde en een programmeer-bootcamp. Vraag een medewerker naar de data.",
		"ask_preferences":           "Wanneer komt het je het beste uit? Noem dagen of 'ochtend', 'middag' of 'avond'. Geen voorkeur mag ook.",
		"slots_prompt":              "Deze momenten zijn beschikbaar:",
		"other_times":               "Andere tijden",
		"no_slots_for_preferences":  "Ik vind geen vrije momenten die daarbij passen. Heb je een andere voorkeur?",
		"no_slots":                  "Ik vind op dit moment geen vrije momenten.",
		"booking_started":           "Ik heb %s voor je vastgehouden. Je krijgt zo een bevestiging.",
		"booking_failed":            "Het reserveren lukte niet. Kies nog eens een moment.",
		"handoff_text":              "Ik verbind je door met een collega. Die reageert zo snel mogelijk.",
		"payment_received":          "Bedankt voor je betaling! Je les staat vast.",
		"payment_description":       "Bijles, %d minuten",
		"payment_request":           "De les kost %s. Je kunt hier betalen: %s",
		"payment_link_failed":       "Het lukte niet om een betaallink te maken. Een collega stuurt je die zo.",
		"relationship_self":         "Voor mezelf",
		"relationship_parent":       "Ouder",
		"relationship_teacher":      "Docent",
		"relationship_other":        "Voor iemand anders",
		"level_po":                  "Basisschool",
		"level_vmbo":                "VMBO",
		"level_havo":                "HAVO",
		"level_vwo":                 "VWO",
		"level_mbo":                 "MBO",
		"level_university_hbo":      "HBO",
		"level_university_wo":       "Universiteit (WO)",
		"level_adult":               "Volwassenenonderwijs",
		"subject_math":              "Wiskunde",
		"subject_stats":             "Statistiek",
		"subject_science":           "Natuurkunde",
		"subject_chemistry":         "Scheikunde",
		"subject_english":           "Engels",
		"subject_programming":       "Programmeren",
		"subject_other":             "Overig",
		"answer_yes":                "Ja",
		"answer_no":                 "Nee",
	},
	"en": {
		"greeting":                  "Hi! How can I help you?",
		"summary_intro":             "This is what I got from your message:",
		"confirm_prompt":            "Is this correct?",
		"confirm_all":               "Yes, correct",
		"correct_all":               "Start over",
		"correct_partial":           "Change something",
		"correction_prompt":         "What would you like to change?",
		"looks_right":               "Looks right now",
		"intake_intro":              "I'll ask you a few short questions.",
		"invalid_value":             "I don't recognise that, please try again.",
		"ask_student_name":          "What is the student's name?",
		"ask_relationship":          "Who are you to the student? (self, parent, teacher or other)",
		"ask_school_level":          "What level is the student at? For example havo 4, vwo or university.",
		"ask_subject":               "Which subject do you need help with?",
		"ask_topic":                 "Which topic exactly?",
		"ask_lesson_mode":           "Would you like lessons online, in person or both?",
		"ask_age_over_18":           "Is the student 18 or older? (yes/no)",
		"label_student_name":        "Name",
		"label_relationship":        "Relationship",
		"label_school_level":        "Level",
		"label_subject":             "Subject",
		"label_topic":               "Topic",
		"label_lesson_mode":         "Lesson mode",
		"label_age_over_18":         "18+",
		"mode_online":               "Online",
		"mode_in_person":            "In person",
		"mode_hybrid":               "Both",
		"action_prompt":             "Great! What would you like to do next?",
		"plan_trial_lesson":         "Plan a trial lesson",
		"plan_all_lessons":          "Plan lessons",
		"urgent_session":            "Urgent session",
		"go_to_main_menu":           "Main menu",
		"handoff":                   "Talk to a person",
		"plan_lesson":               "Plan a lesson",
		"same_preferences":          "Same preferences as last time",
		"old_preferences":           "Use my previous preferences",
		"info":                      "Information",
		"info_prompt":               "What would you like to know more about?",
		"tariffs":                   "Prices",
		"work_method":               "How we work",
		"services":                  "Subjects and services",
		"workshops":                 "Workshops",
		"info_tariffs":              "Prices\n- Trial lesson: free\n- Single lesson (60 min): €60\n- Urgent session (90 min): €95\n- Weekend lesson (60 min): €65\n- MBO track (10 lessons): €550",
		"info_tariffs_no_mbo":       "Prices\n- Trial lesson: free\n- Single lesson (60 min): €60\n- Urgent session (90 min): €95\n- Weekend lesson (60 min): €65\n- Exam training (10 lessons): €550",
		"info_tariffs_adult":        "Prices for adults\n- Intro session: free\n- Single lesson (60 min): €60\n- Urgent session (90 min): €95\n- MBO track (10 lessons): €550\n- Company training: on request",
		"info_tariffs_adult_no_mbo": "Prices for adults\n- Intro session: free\n- Single lesson (60 min): €60\n- Urgent session (90 min): €95\n- Thesis coaching (5 sessions): €300\n- Company training: on request",
		"info_work_method":          "We start with a free trial lesson to assess level and goals. After that we plan regular lessons, online or in person, with short feedback after every lesson.",
		"info_services":             "We tutor math, statistics, physics, chemistry, English and programming, from primary school to university.",
		"info_workshops":            "During exam season we run small group workshops such as math exam training and a programming bootcamp. Ask a colleague for the dates.",
		"ask_preferences":           "When suits you best? Name days or 'morning', 'afternoon' or 'evening'. No preference is fine too.",
		"slots_prompt":              "These times are available:",
		"other_times":               "Other times",
		"no_slots_for_preferences":  "I can't find free times matching that. Do you have another preference?",
		"no_slots":                  "I can't find any free times right now.",
		"booking_started":           "I've held %s for you. You'll receive a confirmation shortly.",
		"booking_failed":            "Booking didn't work. Please pick a time again.",
		"handoff_text":              "I'm connecting you with a colleague who will reply as soon as possible.",
		"payment_received":          "Thanks for your payment! Your lesson is confirmed.",
		"payment_description":       "Tutoring lesson, %d minutes",
		"payment_request":           "The lesson costs %s. You can pay here: %s",
		"payment_link_failed":       "I couldn't create a payment link. A colleague will send it to you shortly.",
		"relationship_self":         "For myself",
		"relationship_parent":       "Parent",
		"relationship_teacher":      "Teacher",
		"relationship_other":        "For someone else",
		"level_po":                  "Primary School",
		"level_vmbo":                "VMBO",
		"level_havo":                "HAVO",
		"level_vwo":                 "VWO",
		"level_mbo":                 "MBO",
		"level_university_hbo":      "HBO",
		"level_university_wo":       "University (WO)",
		"level_adult":               "Adult Education",
		"subject_math":              "Mathematics",
		"subject_stats":             "Statistics",
		"subject_science":           "Physics",
		"subject_chemistry":         "Chemistry",
		"subject_english":           "English",
		"subject_programming":       "Programming",
		"subject_other":             "Other",
		"answer_yes":                "Yes",
		"answer_no":                 "No",
	},
}

// text looks up key in lang, falling back to Dutch and then to the key itself
func text(lang, key string, args ...any) string {
	msg, ok := messages[lang][key]
	if !ok {
		if msg, ok = messages["nl"][key]; !ok {
			msg = key
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
