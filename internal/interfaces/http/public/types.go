package public

import (
	"strconv"
	"time"

	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type ratingAggregateResponse struct {
	Average   float64        `json:"average"`
	Count     int            `json:"count"`
	Breakdown map[string]int `json:"breakdown"`
}

type menuResponse struct {
	Drinks   []string `json:"drinks"`
	Food     []string `json:"food"`
	Specials []string `json:"specials"`
}

type contactResponse struct {
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

type cafeResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Location    string                  `json:"location"`
	Tags        []string                `json:"tags"`
	Menu        menuResponse            `json:"menu"`
	Contact     contactResponse         `json:"contact"`
	Images      []string                `json:"images"`
	Rating      ratingAggregateResponse `json:"rating"`
	CreatedAt   string                  `json:"createdAt,omitempty"`
	UpdatedAt   string                  `json:"updatedAt,omitempty"`
}

type cafeListResponse struct {
	Items []cafeResponse `json:"items"`
	Total int            `json:"total"`
}

type ratingResponse struct {
	ID         string   `json:"id"`
	CafeID     string   `json:"cafeId"`
	UserID     string   `json:"userId"`
	UserName   string   `json:"userName"`
	UserAvatar string   `json:"userAvatar,omitempty"`
	Rating     int      `json:"rating"`
	Comment    string   `json:"comment"`
	Tags       []string `json:"tags"`
	Images     []string `json:"images"`
	Helpful    int      `json:"helpful"`
	CreatedAt  string   `json:"createdAt"`
}

type ratingListResponse struct {
	Items []ratingResponse `json:"items"`
}

type userStatsResponse struct {
	Reviews   int `json:"reviews"`
	Followers int `json:"followers"`
	Following int `json:"following"`
}

type userResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email,omitempty"`
	Name      string            `json:"name"`
	Username  string            `json:"username"`
	Type      string            `json:"type"`
	Bio       string            `json:"bio,omitempty"`
	Avatar    string            `json:"avatar,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Stats     userStatsResponse `json:"stats"`
	CreatedAt string            `json:"createdAt,omitempty"`
	LastLogin string            `json:"lastLogin,omitempty"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
}

type socialLoginResponse struct {
	User        *userResponse `json:"user,omitempty"`
	Token       string        `json:"token,omitempty"`
	ExpiresAt   string        `json:"expiresAt,omitempty"`
	IsNewUser   bool          `json:"isNewUser"`
	Pending     bool          `json:"pending"`
	State       string        `json:"state,omitempty"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
}

type authEventResponse struct {
	User *userResponse `json:"user"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=80"`
	Username string `json:"username" validate:"required,min=3,max=15"`
	Type     string `json:"type" validate:"omitempty,oneof=normal cafe_owner"`
	Bio      string `json:"bio" validate:"max=500"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type socialLoginRequest struct {
	IDToken string `json:"idToken"`
}

type redirectResultRequest struct {
	State   string `json:"state" validate:"required"`
	IDToken string `json:"idToken" validate:"required"`
}

type createRatingForm struct {
	Stars   int      `form:"rating" validate:"gte=1,lte=5"`
	Comment string   `form:"comment" validate:"required,max=2000"`
	Tags    []string `form:"tags"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func toAggregateResponse(agg domain.RatingAggregate) ratingAggregateResponse {
	breakdown := make(map[string]int, domain.MaxStars)
	for stars := domain.MinStars; stars <= domain.MaxStars; stars++ {
		breakdown[strconv.Itoa(stars)] = agg.Breakdown[stars]
	}
	return ratingAggregateResponse{Average: agg.Average, Count: agg.Count, Breakdown: breakdown}
}

func toCafeResponse(c domain.Cafe) cafeResponse {
	return cafeResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		Tags:        nonNilStrings(c.Tags),
		Menu: menuResponse{
			Drinks:   nonNilStrings(c.Menu.Drinks),
			Food:     nonNilStrings(c.Menu.Food),
			Specials: nonNilStrings(c.Menu.Specials),
		},
		Contact: contactResponse{
			Phone:     c.Contact.Phone,
			Website:   c.Contact.Website,
			Instagram: c.Contact.Instagram,
		},
		Images:    nonNilStrings(c.Images),
		Rating:    toAggregateResponse(c.Rating),
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

func toCafeListResponse(cafes []domain.Cafe) cafeListResponse {
	items := make([]cafeResponse, 0, len(cafes))
	for _, c := range cafes {
		items = append(items, toCafeResponse(c))
	}
	return cafeListResponse{Items: items, Total: len(items)}
}

func toRatingResponse(r domain.Rating) ratingResponse {
	return ratingResponse{
		ID:         r.ID,
		CafeID:     r.CafeID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		UserAvatar: r.UserAvatar,
		Rating:     r.Stars,
		Comment:    r.Comment,
		Tags:       nonNilStrings(r.Tags),
		Images:     nonNilStrings(r.Images),
		Helpful:    r.Helpful,
		CreatedAt:  formatTime(r.CreatedAt),
	}
}

func toUserResponse(u *domain.User) *userResponse {
	if u == nil {
		return nil
	}
	resp := &userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
		Type:     string(u.Type),
		Bio:      u.Bio,
		Avatar:   u.Avatar,
		Provider: u.Provider,
		Stats: userStatsResponse{
			Reviews:   u.Stats.Reviews,
			Followers: u.Stats.Followers,
			Following: u.Stats.Following,
		},
		CreatedAt: formatTime(u.CreatedAt),
	}
	if u.LastLogin != nil {
		resp.LastLogin = formatTime(*u.LastLogin)
	}
	return resp
}

func toAuthResponse(result *publicapp.AuthResult) authResponse {
	return authResponse{
		User:      *toUserResponse(result.User),
		Token:     result.Token.Value,
		ExpiresAt: formatTime(result.Token.ExpiresAt),
	}
}

func toSocialLoginResponse(result *publicapp.SocialLoginResult) socialLoginResponse {
	if result.Pending {
		return socialLoginResponse{Pending: true, State: result.State, RedirectURL: result.RedirectURL}
	}
	return socialLoginResponse{
		User:      toUserResponse(result.User),
		Token:     result.Token.Value,
		ExpiresAt: formatTime(result.Token.ExpiresAt),
		IsNewUser: result.IsNewUser,
	}
}
