package prefill

import "fmt"

// Instructions is the system prompt shared by the language model backends
func Instructions(languageHint string) string {
	lang := "Dutch"
	if languageHint == "en" {
		lang = "English"
	}
	return fmt.Sprintf(`You extract intake details for a tutoring service from a WhatsApp message written in %s.
Reply with a single JSON object and nothing else, using exactly these keys:
  student_name     name of the learner, or null
  relationship     "self", "parent", "teacher" or "other" (who writes relative to the learner), or null
  school_level     "po", "vmbo", "havo", "vwo", "mbo", "university_hbo", "university_wo" or "adult", or null
  subject          "math", "stats", "science", "chemistry", "english", "programming" or "other", or null
  topic            the specific topic in the user's words (e.g. "wiskunde B"), or null
  lesson_mode      "online", "in_person" or "hybrid", or null
  age_over_18      true, false or null
  preferred_times  days or times the user mentions, or null
  confidence       a number between 0 and 1
Use null for anything the message does not state. Never guess names.`, lang)
}
