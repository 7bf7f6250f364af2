package core

import "regexp"

// DBOrdering is a single ORDER BY term, typically bound from the "ordering"
// query parameter.
type DBOrdering struct {
	Field     string
	Ascending bool
}

var orderingFieldRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Valid reports whether Field is a plain column identifier. Ordering fields
// come from the query string and must never reach SQL unchecked.
func (ord DBOrdering) Valid() bool {
	return orderingFieldRegex.MatchString(ord.Field)
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
