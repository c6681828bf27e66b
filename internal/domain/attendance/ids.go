package attendance

import (
	"fmt"
	"strings"
)

// SlugifySubjectID derives a subject id from its display name: lowercase,
// runs of characters outside [a-z0-9] become "_", leading and trailing
// underscores are trimmed. An empty result becomes "subject".
func SlugifySubjectID(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "subject"
	}
	return b.String()
}

// NextSubjectID returns the slug of name, suffixed with _2, _3, ... until it
// does not collide with an existing subject.
func NextSubjectID(existing []Subject, name string) string {
	taken := SubjectIDs(existing)
	base := SlugifySubjectID(name)
	id := base
	for i := 2; ; i++ {
		if _, ok := taken[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

// NextSemesterID returns sem<N> starting at len(semesters)+1 and counting up
// past any id already in use.
func NextSemesterID(semesters []Semester) string {
	taken := make(map[string]struct{}, len(semesters))
	for _, s := range semesters {
		taken[s.ID] = struct{}{}
	}
	for n := len(semesters) + 1; ; n++ {
		id := fmt.Sprintf("sem%d", n)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}
