package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	cafes   map[string]*domain.Cafe
	ratings []domain.Rating
	votes   map[string]bool
	nextID  int
	failTx  error
}

func newMemoryStore(cafes ...domain.Cafe) *memoryStore {
	s := &memoryStore{cafes: map[string]*domain.Cafe{}, votes: map[string]bool{}}
	for i := range cafes {
		c := cafes[i]
		if c.Rating.Breakdown == nil {
			c.Rating.Breakdown = domain.NewRatingAggregate().Breakdown
		}
		s.cafes[c.ID] = &c
	}
	return s
}

func (s *memoryStore) cafe(id string) domain.Cafe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cafes[id]
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*domain.Cafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cafes[id]
	if !ok {
		return nil, ErrCafeNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryStore) all() []domain.Cafe {
	out := make([]domain.Cafe, 0, len(s.cafes))
	for _, c := range s.cafes {
		out = append(out, *c)
	}
	return out
}

func (s *memoryStore) FindByNamePrefix(_ context.Context, prefix string, limit int) ([]domain.Cafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Cafe
	for _, c := range s.all() {
		if c.Name >= prefix && c.Name < prefix+"\uf8ff" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return head(out, limit), nil
}

func (s *memoryStore) FindTopRated(_ context.Context, limit int) ([]domain.Cafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.all()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating.Average != out[j].Rating.Average {
			return out[i].Rating.Average > out[j].Rating.Average
		}
		return out[i].ID < out[j].ID
	})
	return head(out, limit), nil
}

func (s *memoryStore) FindPopular(_ context.Context, limit int) ([]domain.Cafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.all()
	// map order is random; the service must impose the final order.
	return head(out, limit), nil
}

func (s *memoryStore) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("r%03d", s.nextID)
}

func (s *memoryStore) CreateWithAggregate(_ context.Context, rating *domain.Rating, opts AggregateOptions) (*domain.RatingAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTx != nil {
		return nil, s.failTx
	}
	cafe, ok := s.cafes[rating.CafeID]
	if !ok {
		if !opts.AllowOrphan {
			return nil, ErrCafeNotFound
		}
		s.ratings = append(s.ratings, *rating)
		return nil, nil
	}
	next, err := cafe.Rating.Apply(rating.Stars)
	if err != nil {
		return nil, err
	}
	s.ratings = append(s.ratings, *rating)
	cafe.Rating = next
	return &next, nil
}

func (s *memoryStore) FindByCafe(_ context.Context, cafeID string, limit int) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Rating
	for _, r := range s.ratings {
		if r.CafeID == cafeID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) IncrementHelpful(_ context.Context, ratingID, voterID string, inc bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ratings {
		if s.ratings[i].ID != ratingID {
			continue
		}
		key := ratingID + "/" + voterID
		switch {
		case inc && !s.votes[key]:
			s.votes[key] = true
			s.ratings[i].Helpful++
		case !inc && s.votes[key]:
			delete(s.votes, key)
			s.ratings[i].Helpful--
		}
		return s.ratings[i].Helpful, nil
	}
	return 0, ErrRatingNotFound
}

func head(cafes []domain.Cafe, limit int) []domain.Cafe {
	if limit > 0 && len(cafes) > limit {
		return cafes[:limit]
	}
	return cafes
}

type fakeBlobs struct {
	failIndex map[int]bool
	keys      []string
	calls     int
}

func (b *fakeBlobs) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	idx := b.calls
	b.calls++
	if b.failIndex[idx] {
		return "", errors.New("storage unavailable")
	}
	b.keys = append(b.keys, key)
	return "https://media.example.test/" + key, nil
}

type countingRecorder struct {
	submitted []int
	failures  int
}

func (r *countingRecorder) RatingSubmitted(stars int) { r.submitted = append(r.submitted, stars) }
func (r *countingRecorder) ImageUploadFailed(string) { r.failures++ }

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
	reads int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]domain.User{}}
}

func (u *memoryUsers) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = *user
	return nil
}

func (u *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reads++
	user, ok := u.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (u *memoryUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = &at
	u.users[id] = user
	return nil
}

type memoryIdentities struct {
	passwords map[string]string
	ids       map[string]string
	federated map[string]string
	seq       int
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{
		passwords: map[string]string{},
		ids:       map[string]string{},
		federated: map[string]string{},
	}
}

func (m *memoryIdentities) CreatePasswordCredential(_ context.Context, email, password string) (string, error) {
	if _, ok := m.ids[email]; ok {
		return "", ErrEmailTaken
	}
	m.seq++
	id := fmt.Sprintf("u%d", m.seq)
	m.passwords[email] = password
	m.ids[email] = id
	return id, nil
}

func (m *memoryIdentities) VerifyPassword(_ context.Context, email, password string) (string, error) {
	if pw, ok := m.passwords[email]; !ok || pw != password {
		return "", ErrInvalidCredentials
	}
	return m.ids[email], nil
}

func (m *memoryIdentities) ResolveFederated(_ context.Context, provider domain.Provider, subject, _ string) (string, bool, error) {
	key := string(provider) + "|" + subject
	if id, ok := m.federated[key]; ok {
		return id, false, nil
	}
	m.seq++
	id := fmt.Sprintf("u%d", m.seq)
	m.federated[key] = id
	return id, true, nil
}

type fakeTokens struct {
	revoked []string
}

func (t *fakeTokens) Issue(user domain.User) (AccessToken, error) {
	return AccessToken{Value: "token-" + user.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (t *fakeTokens) Revoke(_ context.Context, token string) error {
	t.revoked = append(t.revoked, token)
	return nil
}

// fakeVerifier accepts tokens of the form "<subject>|<display name>|<email>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, provider domain.Provider, idToken string) (SocialIdentity, error) {
	parts := strings.SplitN(idToken, "|", 3)
	if len(parts) != 3 || parts[0] == "" {
		return SocialIdentity{}, ErrInvalidIDToken
	}
	return SocialIdentity{
		Provider:    provider,
		Subject:     parts[0],
		DisplayName: parts[1],
		Email:       parts[2],
		PhotoURL:    "https://img.example.test/" + parts[0],
	}, nil
}

type memoryPending struct {
	states map[string]domain.Provider
	ttls   []time.Duration
}

func (p *memoryPending) Save(_ context.Context, state string, provider domain.Provider, ttl time.Duration) error {
	if p.states == nil {
		p.states = map[string]domain.Provider{}
	}
	p.states[state] = provider
	p.ttls = append(p.ttls, ttl)
	return nil
}

func (p *memoryPending) Consume(_ context.Context, state string) (domain.Provider, error) {
	provider, ok := p.states[state]
	if !ok {
		return "", ErrPendingStateNotFound
	}
	delete(p.states, state)
	return provider, nil
}
