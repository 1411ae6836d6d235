package domain

import "time"

// Cafe represents a publicly visible café entity.
type Cafe struct {
	ID          string
	Name        string
	Description string
	Location    string
	Tags        []string
	Menu        Menu
	Contact     Contact
	Images      []string
	Rating      RatingAggregate
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Menu groups the three menu categories shown on the detail page.
type Menu struct {
	Drinks   []string
	Food     []string
	Specials []string
}

// Contact defines optional contact channels for a café.
type Contact struct {
	Phone     string
	Website   string
	Instagram string
}

// HasAnyTag reports whether the café carries at least one of tags.
func (c Cafe) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
