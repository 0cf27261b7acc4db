package entity

import (
	"encoding/json"
	"fmt"

	"github.com/jgivc/lmsexport/internal/common"
)

type Category string

const (
	CategoryModules     Category = "modules"
	CategorySyllabus    Category = "syllabus"
	CategoryPages       Category = "pages"
	CategorySubmissions Category = "submissions"
)

// Categories is the processing order of an export.
var Categories = []Category{CategoryModules, CategorySyllabus, CategoryPages, CategorySubmissions}

func (c Category) Folder() string {
	switch c {
	case CategoryModules:
		return "Modules"
	case CategorySyllabus:
		return "Syllabus"
	case CategoryPages:
		return "Pages"
	case CategorySubmissions:
		return "Submissions"
	}

	return "Other"
}

func (c Category) Valid() bool {
	switch c {
	case CategoryModules, CategorySyllabus, CategoryPages, CategorySubmissions:
		return true
	}

	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownCategory, s)
	}

	return c, nil
}

// Unit is one (category, course) pair, the granularity of progress.
type Unit struct {
	Category Category
	CourseID int64
}

func (u Unit) String() string {
	return fmt.Sprintf("%s of course %d", u.Category, u.CourseID)
}

// Selection maps a category to the course ids to export for it.
type Selection map[Category][]int64

func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw map[string][]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sel := make(Selection, len(raw))
	for name, ids := range raw {
		c, err := ParseCategory(name)
		if err != nil {
			return err
		}

		sel[c] = ids
	}

	*s = sel

	return nil
}

// Units lists the selected pairs in processing order: categories in fixed order,
// course ids in submitted order.
func (s Selection) Units() []Unit {
	var units []Unit
	for _, c := range Categories {
		for _, id := range s[c] {
			units = append(units, Unit{Category: c, CourseID: id})
		}
	}

	return units
}

func (s Selection) Total() int {
	var total int
	for _, c := range Categories {
		total += len(s[c])
	}

	return total
}
