package mongo

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// Collections はコレクション名の束。設定から渡される。
type Collections struct {
	Cafes        string
	Ratings      string
	Users        string
	Credentials  string
	HelpfulVotes string
}

// RatingAggregateDocument はカフェドキュメント内の rating 埋め込み構造を表す。
// breakdown のキーは "1".."5" の文字列。
type RatingAggregateDocument struct {
	Average   float64        `bson:"average"`
	Count     int            `bson:"count"`
	Breakdown map[string]int `bson:"breakdown"`
}

// CafeDocument は MongoDB 上でのカフェスキーマを Go 構造体として表現したもの。
type CafeDocument struct {
	ID          primitive.ObjectID      `bson:"_id"`
	Name        string                  `bson:"name"`
	Description string                  `bson:"description,omitempty"`
	Location    string                  `bson:"location,omitempty"`
	Tags        []string                `bson:"tags,omitempty"`
	Menu        MenuDocument            `bson:"menu"`
	Contact     ContactDocument         `bson:"contact"`
	Images      []string                `bson:"images"`
	Rating      RatingAggregateDocument `bson:"rating"`
	OwnerID     string                  `bson:"ownerId,omitempty"`
	CreatedAt   *time.Time              `bson:"createdAt,omitempty"`
	UpdatedAt   *time.Time              `bson:"updatedAt,omitempty"`
}

// MenuDocument はメニューの埋め込みドキュメント。
type MenuDocument struct {
	Drinks   []string `bson:"drinks,omitempty"`
	Food     []string `bson:"food,omitempty"`
	Specials []string `bson:"specials,omitempty"`
}

// ContactDocument は連絡先の埋め込みドキュメント。
type ContactDocument struct {
	Phone     string `bson:"phone,omitempty"`
	Website   string `bson:"website,omitempty"`
	Instagram string `bson:"instagram,omitempty"`
}

// RatingDocument は評価 1 件のスキーマ。cafeId でカフェに紐づく。
type RatingDocument struct {
	ID         primitive.ObjectID `bson:"_id"`
	CafeID     primitive.ObjectID `bson:"cafeId"`
	UserID     string             `bson:"userId"`
	UserName   string             `bson:"userName,omitempty"`
	UserAvatar string             `bson:"userAvatar,omitempty"`
	Rating     int                `bson:"rating"`
	Comment    string             `bson:"comment"`
	Tags       []string           `bson:"tags"`
	Images     []string           `bson:"images"`
	Helpful    int                `bson:"helpful"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

// UserDocument はプリンシパル ID をキーとしたユーザープロフィール。
type UserDocument struct {
	ID        string            `bson:"_id"`
	Email     string            `bson:"email"`
	Name      string            `bson:"name"`
	Username  string            `bson:"username"`
	Type      string            `bson:"type"`
	Bio       string            `bson:"bio"`
	Avatar    string            `bson:"avatar"`
	Provider  string            `bson:"provider,omitempty"`
	Stats     UserStatsDocument `bson:"stats"`
	CreatedAt time.Time         `bson:"createdAt"`
	LastLogin *time.Time        `bson:"lastLogin,omitempty"`
}

// UserStatsDocument は表示用カウンタ。
type UserStatsDocument struct {
	Reviews   int `bson:"reviews"`
	Followers int `bson:"followers"`
	Following int `bson:"following"`
}

// CredentialDocument は認証情報。パスワード認証かフェデレーションのどちらか。
type CredentialDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email,omitempty"`
	PasswordHash string    `bson:"passwordHash,omitempty"`
	Provider     string    `bson:"provider,omitempty"`
	Subject      string    `bson:"subject,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func aggregateToDocument(agg domain.RatingAggregate) RatingAggregateDocument {
	breakdown := make(map[string]int, domain.MaxStars)
	for stars := domain.MinStars; stars <= domain.MaxStars; stars++ {
		breakdown[strconv.Itoa(stars)] = agg.Breakdown[stars]
	}
	return RatingAggregateDocument{
		Average:   agg.Average,
		Count:     agg.Count,
		Breakdown: breakdown,
	}
}

// aggregateFromDocument は欠損キーを 0 として扱う。
func aggregateFromDocument(doc RatingAggregateDocument) domain.RatingAggregate {
	agg := domain.NewRatingAggregate()
	agg.Average = doc.Average
	agg.Count = doc.Count
	for key, n := range doc.Breakdown {
		stars, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		agg.Breakdown[stars] = n
	}
	return agg
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string{}, values...)
}
