package domain

// RatingTags is the fixed tag vocabulary shared by ratings and cafés.
var RatingTags = []string{
	"Quiet",
	"Great WiFi",
	"Good Coffee",
	"Good for Working",
	"Good for Chatting",
	"Pet Friendly",
	"Outdoor Seating",
	"Background Music",
	"Breakfast",
	"Desserts",
}

// IsRatingTag reports whether tag belongs to RatingTags.
func IsRatingTag(tag string) bool {
	for _, known := range RatingTags {
		if known == tag {
			return true
		}
	}
	return false
}
