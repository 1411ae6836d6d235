package domain

import (
	"time"

	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// Cafe aggregates the data a café owner manages.
// The rating aggregate is read-only here; only rating submission and
// reconciliation write it.
type Cafe struct {
	ID          string
	Name        CafeName
	Description string
	Location    Location
	Tags        TagList
	Menu        Menu
	Contact     Contact
	Images      PhotoURLList
	Rating      publicdomain.RatingAggregate
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Menu mirrors the three menu sections for the admin context.
type Menu struct {
	Drinks   MenuItemList
	Food     MenuItemList
	Specials MenuItemList
}

func NewMenu(drinks, food, specials []string) (Menu, error) {
	d, err := NewMenuItemList(drinks)
	if err != nil {
		return Menu{}, err
	}
	f, err := NewMenuItemList(food)
	if err != nil {
		return Menu{}, err
	}
	s, err := NewMenuItemList(specials)
	if err != nil {
		return Menu{}, err
	}
	return Menu{Drinks: d, Food: f, Specials: s}, nil
}

// Contact holds the optional contact channels.
type Contact struct {
	Phone     Phone
	Website   URL
	Instagram InstagramHandle
}

func NewContact(phone, website, instagram string) (Contact, error) {
	p, err := NewPhone(phone)
	if err != nil {
		return Contact{}, err
	}
	w, err := NewURL(website)
	if err != nil {
		return Contact{}, err
	}
	ig, err := NewInstagramHandle(instagram)
	if err != nil {
		return Contact{}, err
	}
	return Contact{Phone: p, Website: w, Instagram: ig}, nil
}
