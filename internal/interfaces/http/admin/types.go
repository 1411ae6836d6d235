package admin

import (
	"strconv"
	"time"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type menuPayload struct {
	Drinks   []string `json:"drinks"`
	Food     []string `json:"food"`
	Specials []string `json:"specials"`
}

type contactPayload struct {
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	Instagram string `json:"instagram"`
}

// adminCafeRequest is the body of PATCH and the "cafe" part of POST.
type adminCafeRequest struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Location    string         `json:"location" validate:"required"`
	Tags        []string       `json:"tags"`
	Menu        menuPayload    `json:"menu"`
	Contact     contactPayload `json:"contact"`
}

func (req adminCafeRequest) toCommand(actorID string) adminapp.UpsertCafeCommand {
	return adminapp.UpsertCafeCommand{
		ActorID:     actorID,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Tags:        req.Tags,
		Menu: adminapp.MenuCommand{
			Drinks:   req.Menu.Drinks,
			Food:     req.Menu.Food,
			Specials: req.Menu.Specials,
		},
		Contact: adminapp.ContactCommand{
			Phone:     req.Contact.Phone,
			Website:   req.Contact.Website,
			Instagram: req.Contact.Instagram,
		},
	}
}

type aggregateResponse struct {
	Average   float64        `json:"average"`
	Count     int            `json:"count"`
	Breakdown map[string]int `json:"breakdown"`
}

type adminCafeResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Tags        []string          `json:"tags"`
	Menu        menuPayload       `json:"menu"`
	Contact     contactPayload    `json:"contact"`
	Images      []string          `json:"images"`
	Rating      aggregateResponse `json:"rating"`
	OwnerID     string            `json:"ownerId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type adminCafeListResponse struct {
	Items []adminCafeResponse `json:"items"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

type reconcileResponse struct {
	CafeID string            `json:"cafeId"`
	Rating aggregateResponse `json:"rating"`
}

func strs(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func toAggregateResponse(agg publicdomain.RatingAggregate) aggregateResponse {
	breakdown := make(map[string]int, publicdomain.MaxStars)
	for stars := publicdomain.MinStars; stars <= publicdomain.MaxStars; stars++ {
		breakdown[strconv.Itoa(stars)] = agg.Breakdown[stars]
	}
	return aggregateResponse{Average: agg.Average, Count: agg.Count, Breakdown: breakdown}
}

func adminCafeDomainToResponse(c admindomain.Cafe) adminCafeResponse {
	return adminCafeResponse{
		ID:          c.ID,
		Name:        c.Name.String(),
		Description: c.Description,
		Location:    c.Location.String(),
		Tags:        strs(c.Tags.Strings()),
		Menu: menuPayload{
			Drinks:   strs(c.Menu.Drinks.Strings()),
			Food:     strs(c.Menu.Food.Strings()),
			Specials: strs(c.Menu.Specials.Strings()),
		},
		Contact: contactPayload{
			Phone:     c.Contact.Phone.String(),
			Website:   c.Contact.Website.String(),
			Instagram: c.Contact.Instagram.String(),
		},
		Images:    strs(c.Images.Strings()),
		Rating:    toAggregateResponse(c.Rating),
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
