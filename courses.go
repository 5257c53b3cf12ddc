// ABOUTME: Course model and selection of courses to export.
// ABOUTME: Maps user-supplied course codes or numeric ids onto the courses visible to the account.

package main

import (
	"fmt"
	"strconv"
)

// Course fields other than ID are absent for courses the account can no
// longer access.
type Course struct {
	ID         int     `json:"id"`
	Name       *string `json:"name"`
	CourseCode *string `json:"course_code"`
}

// CourseSet maps course ids to course codes and remembers insertion order.
type CourseSet struct {
	ids   []int
	codes map[int]string
}

func newCourseSet() *CourseSet {
	return &CourseSet{codes: make(map[int]string)}
}

func (s *CourseSet) add(id int, code string) {
	if _, ok := s.codes[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.codes[id] = code
}

func (s *CourseSet) Len() int {
	return len(s.ids)
}

func (s *CourseSet) Code(id int) (string, bool) {
	code, ok := s.codes[id]
	return code, ok
}

// IDs returns course ids in insertion order.
func (s *CourseSet) IDs() []int {
	return append([]int(nil), s.ids...)
}

// catalogSet builds the set of exportable courses: those with both a name and
// a course code.
func catalogSet(courses []Course) *CourseSet {
	set := newCourseSet()
	for _, c := range courses {
		if c.Name == nil || c.CourseCode == nil {
			continue
		}
		set.add(c.ID, *c.CourseCode)
	}
	return set
}

// resolveCourses selects courses by code first, then by numeric id. Tokens
// matching neither are passed to skip with a human readable reason.
func resolveCourses(tokens []string, available *CourseSet, skip func(string)) *CourseSet {
	idsByCode := make(map[string]int, available.Len())
	for _, id := range available.ids {
		idsByCode[available.codes[id]] = id
	}

	selected := newCourseSet()
	for _, token := range tokens {
		if id, ok := idsByCode[token]; ok {
			selected.add(id, token)
			continue
		}

		if isDigits(token) {
			id, err := strconv.Atoi(token)
			if err != nil {
				skip(fmt.Sprintf("Skipping course id %s, course not found", token))
				continue
			}
			if code, ok := available.Code(id); ok {
				selected.add(id, code)
				continue
			}
			skip(fmt.Sprintf("Skipping course id %d, course not found", id))
			continue
		}

		skip(fmt.Sprintf("Skipping %s, course not found", token))
	}
	return selected
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
