package curriculum

import (
	"sort"
	"strings"
)

const bossSuffix = ".BOSS"

// IsBossLesson reports whether the lesson id names a boss fight.
func IsBossLesson(lessonID string) bool {
	return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(lessonID)), bossSuffix)
}

// ModuleForLesson maps a lesson id such as "A1.10.2" or "a1.1.boss" to its
// module tag. Tags are tried longest first and must end at a dot boundary,
// so "A1.10.2" never resolves to "A1.1". Unknown ids fall back to the first
// known module.
func ModuleForLesson(lessonID string, known []string) string {
	if len(known) == 0 {
		return ""
	}

	id := strings.ToUpper(strings.TrimSpace(lessonID))
	id = strings.TrimSuffix(id, bossSuffix)

	tags := make([]string, len(known))
	copy(tags, known)
	sort.SliceStable(tags, func(i, j int) bool { return len(tags[i]) > len(tags[j]) })

	for _, tag := range tags {
		t := strings.ToUpper(tag)
		if id == t || strings.HasPrefix(id, t+".") {
			return tag
		}
	}
	return known[0]
}
