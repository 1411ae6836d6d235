// Command seed fills a development database with sample cafés, accounts and
// ratings. Ratings go through the rating service so every café aggregate
// matches its stored ratings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/logger"
	mongodoc "github.com/sngm3741/cafe-club/api/internal/infrastructure/mongo"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

const seedPassword = "password123"

type seedOptions struct {
	envName         string
	cafeCount       int
	userCount       int
	ratingCount     int
	dropCollections bool
	randomSeed      int64
}

type seedAccount struct {
	id   string
	name string
}

func main() {
	opts := parseFlags()

	if err := loadEnvFiles(opts.envName); err != nil {
		log.Fatalf("load env: %v", err)
	}

	zl, err := logger.New(logger.ConfigForEnv(os.Getenv("APP_ENV"), envOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cols := mongodoc.Collections{
		Cafes:        envOrDefault("CAFE_COLLECTION", "cafe"),
		Ratings:      envOrDefault("RATING_COLLECTION", "rating"),
		Users:        envOrDefault("USER_COLLECTION", "user"),
		Credentials:  envOrDefault("CREDENTIAL_COLLECTION", "credential"),
		HelpfulVotes: envOrDefault("HELPFUL_VOTE_COLLECTION", "rating_helpful_votes"),
	}
	mongoURI := envOrDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	dbName := envOrDefault("MONGO_DB", "cafe-club")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		zl.Fatal("mongo connect failed", zap.Error(err))
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	db := client.Database(dbName)

	if opts.dropCollections {
		for _, name := range []string{cols.Cafes, cols.Ratings, cols.Users, cols.Credentials, cols.HelpfulVotes} {
			if err := db.Collection(name).Drop(ctx); err != nil {
				zl.Fatal("drop collection failed", zap.String("collection", name), zap.Error(err))
			}
		}
		zl.Info("existing collections dropped")
	}
	if err := mongodoc.EnsureIndexes(ctx, db, cols); err != nil {
		zl.Fatal("ensure indexes failed", zap.Error(err))
	}

	rng := rand.New(rand.NewSource(opts.randomSeed))
	users := mongodoc.NewUserRepository(db, cols.Users)
	credentials := mongodoc.NewCredentialRepository(db, cols.Credentials, 0)
	ratings := mongodoc.NewRatingRepository(client, db, cols.Ratings, cols.Cafes, cols.HelpfulVotes)

	owner, err := createAccount(ctx, users, credentials, "owner@cafe-club.test", "Cafe Owner", domain.AccountTypeCafeOwner)
	if err != nil {
		zl.Fatal("create owner failed", zap.Error(err))
	}
	accounts := make([]seedAccount, 0, opts.userCount)
	for i := 0; i < opts.userCount; i++ {
		name := randomPersonName(rng)
		account, err := createAccount(ctx, users, credentials, fmt.Sprintf("user%02d@cafe-club.test", i+1), name, domain.AccountTypeNormal)
		if err != nil {
			zl.Fatal("create user failed", zap.Error(err))
		}
		accounts = append(accounts, account)
	}

	cafeService := adminapp.NewCafeService(adminapp.CafeServiceConfig{
		Cafes:   mongodoc.NewAdminCafeRepository(db, cols.Cafes),
		Ratings: ratings,
		Logger:  zl,
	})
	cafeIDs := make([]string, 0, opts.cafeCount)
	for _, cmd := range generateCafes(rng, opts.cafeCount, owner.id) {
		cafe, err := cafeService.Register(ctx, cmd, nil)
		if err != nil {
			zl.Fatal("register cafe failed", zap.String("name", cmd.Name), zap.Error(err))
		}
		cafeIDs = append(cafeIDs, cafe.ID)
	}

	ratingService := publicapp.NewRatingCommandService(publicapp.RatingServiceConfig{
		Ratings: ratings,
		Cafes:   mongodoc.NewCafeRepository(db, cols.Cafes),
		Logger:  zl,
	})
	for _, cmd := range generateRatings(rng, cafeIDs, accounts, opts.ratingCount) {
		if _, err := ratingService.Submit(ctx, cmd); err != nil {
			zl.Fatal("submit rating failed", zap.String("cafeId", cmd.CafeID), zap.Error(err))
		}
	}

	zl.Info("seed finished",
		zap.Int("cafes", len(cafeIDs)),
		zap.Int("users", len(accounts)+1),
		zap.Int("ratings", opts.ratingCount),
		zap.String("password", seedPassword),
		zap.String("database", dbName),
		zap.Int64("seed", opts.randomSeed),
	)
}

func parseFlags() seedOptions {
	var opts seedOptions
	flag.StringVar(&opts.envName, "env", "local", "env file name under ../env (local, staging)")
	flag.IntVar(&opts.cafeCount, "cafes", 12, "number of cafés")
	flag.IntVar(&opts.userCount, "users", 8, "number of regular accounts")
	flag.IntVar(&opts.ratingCount, "ratings", 80, "number of ratings")
	flag.BoolVar(&opts.dropCollections, "drop", true, "drop existing collections first")
	flag.Int64Var(&opts.randomSeed, "seed", time.Now().UnixNano(), "random seed for reproducible data")
	flag.Parse()

	if opts.cafeCount <= 0 {
		log.Fatal("-cafes must be at least 1")
	}
	if opts.userCount <= 0 {
		opts.userCount = 1
	}
	if opts.ratingCount < 0 {
		opts.ratingCount = 0
	}
	return opts
}

// loadEnvFiles reads ../env/shared.env and ../env/<name>.env when present.
func loadEnvFiles(envName string) error {
	base := filepath.Clean(filepath.Join("..", "env"))
	for _, file := range []string{
		filepath.Join(base, "shared.env"),
		filepath.Join(base, envName+".env"),
	} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

type userCreator interface {
	Create(ctx context.Context, user *domain.User) error
}

type credentialCreator interface {
	CreatePasswordCredential(ctx context.Context, email, password string) (string, error)
}

func createAccount(ctx context.Context, users userCreator, credentials credentialCreator, email, name string, accountType domain.AccountType) (seedAccount, error) {
	id, err := credentials.CreatePasswordCredential(ctx, email, seedPassword)
	if err != nil {
		return seedAccount{}, fmt.Errorf("%s: %w", email, err)
	}
	err = users.Create(ctx, &domain.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Username:  domain.GenerateUsername(name),
		Type:      accountType,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return seedAccount{}, fmt.Errorf("%s: %w", email, err)
	}
	return seedAccount{id: id, name: name}, nil
}

var (
	cafePrefixes = []string{"Bean", "Brew", "Roast", "Crema", "Kettle", "Ember", "Harbor", "Copper", "Maple", "Juniper"}
	cafeSuffixes = []string{"House", "Lab", "Corner", "Collective", "Room", "Works", "Bar", "Garden"}
	locations    = []string{"Alfama, Lisbon", "Baixa, Lisbon", "Ribeira, Porto", "Gràcia, Barcelona", "Malasaña, Madrid", "Kreuzberg, Berlin"}
	drinks       = []string{"Espresso", "Flat White", "Cortado", "Cold Brew", "Matcha Latte", "Chai", "Filter V60"}
	food         = []string{"Pastel de Nata", "Avocado Toast", "Banana Bread", "Granola Bowl", "Croissant"}
	specials     = []string{"Seasonal Single Origin", "Honey Oat Latte", "Espresso Tonic"}
	comments     = []string{
		"Lovely spot to spend an afternoon.",
		"Coffee was excellent, seating a bit tight.",
		"Friendly staff and fast WiFi.",
		"Too loud for calls but great for catching up.",
		"Pastries sold out early, come before noon.",
		"",
	}
	firstNames = []string{"Ana", "Bruno", "Chloé", "Diego", "Emi", "Farah", "Gus", "Hana", "Ivo", "Jun"}
	lastNames  = []string{"Silva", "Costa", "Martin", "Ruiz", "Tanaka", "Haddad", "Berg", "Kim"}
)

func generateCafes(rng *rand.Rand, count int, ownerID string) []adminapp.UpsertCafeCommand {
	out := make([]adminapp.UpsertCafeCommand, 0, count)
	seen := make(map[string]int)
	for i := 0; i < count; i++ {
		name := cafePrefixes[rng.Intn(len(cafePrefixes))] + " " + cafeSuffixes[rng.Intn(len(cafeSuffixes))]
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s %d", name, n)
		}
		out = append(out, adminapp.UpsertCafeCommand{
			ActorID:     ownerID,
			Name:        name,
			Description: fmt.Sprintf("%s serves specialty coffee in %s.", name, locations[i%len(locations)]),
			Location:    locations[i%len(locations)],
			Tags:        pickUnique(rng, domain.RatingTags, 1+rng.Intn(3)),
			Menu: adminapp.MenuCommand{
				Drinks:   pickUnique(rng, drinks, 2+rng.Intn(3)),
				Food:     pickUnique(rng, food, 1+rng.Intn(2)),
				Specials: pickUnique(rng, specials, rng.Intn(2)),
			},
			Contact: adminapp.ContactCommand{
				Instagram: strings.ToLower(strings.ReplaceAll(name, " ", "")),
			},
		})
	}
	return out
}

func generateRatings(rng *rand.Rand, cafeIDs []string, accounts []seedAccount, count int) []publicapp.SubmitRatingCommand {
	if len(cafeIDs) == 0 || len(accounts) == 0 {
		return nil
	}
	out := make([]publicapp.SubmitRatingCommand, 0, count)
	for i := 0; i < count; i++ {
		author := accounts[rng.Intn(len(accounts))]
		// skewed toward favourable ratings
		stars := domain.MaxStars - rng.Intn(rng.Intn(domain.MaxStars)+1)
		out = append(out, publicapp.SubmitRatingCommand{
			CafeID:     cafeIDs[rng.Intn(len(cafeIDs))],
			AuthorID:   author.id,
			AuthorName: author.name,
			Stars:      stars,
			Comment:    comments[rng.Intn(len(comments))],
			Tags:       pickUnique(rng, domain.RatingTags, rng.Intn(4)),
		})
	}
	return out
}

func pickUnique(rng *rand.Rand, source []string, count int) []string {
	if count > len(source) {
		count = len(source)
	}
	out := make([]string, 0, count)
	for _, idx := range rng.Perm(len(source))[:count] {
		out = append(out, source[idx])
	}
	return out
}

func randomPersonName(rng *rand.Rand) string {
	return firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]
}
