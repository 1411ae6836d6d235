package public

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type fixture struct {
	cafes    *stubCafes
	ratings  *stubRatings
	auth     *stubAuth
	sessions *publicapp.SessionRegistry
	router   chi.Router
}

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			common.WriteError(nil, w, http.StatusUnauthorized, "missing token")
			return
		}
		ctx := common.ContextWithUser(r.Context(), common.AuthenticatedUser{
			ID:    "user-1",
			Name:  "Ana",
			Token: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{
		cafes:   &stubCafes{detailByID: map[string]domain.Cafe{}},
		ratings: &stubRatings{},
		auth:    &stubAuth{user: &domain.User{ID: "user-1", Name: "Ana", Username: "ana", Type: domain.AccountTypeNormal}},
		sessions: publicapp.NewSessionRegistry(stubUsers{users: map[string]*domain.User{
			"user-1": {ID: "user-1", Name: "Ana"},
		}}, logger),
	}
	h := NewHandler(Config{
		Logger:              logger,
		CafeQueries:         f.cafes,
		RatingQueries:       f.ratings,
		RatingCommands:      f.ratings,
		Auth:                f.auth,
		Sessions:            f.sessions,
		HelpfulCookieSecret: []byte("cookie-secret"),
	})
	r := chi.NewRouter()
	h.Register(r, Middlewares{Auth: fakeAuth})
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCafeList(t *testing.T) {
	f := newFixture(t)
	f.cafes.cafes = []domain.Cafe{{
		ID:     "c1",
		Name:   "Blue Bottle",
		Tags:   []string{"Quiet"},
		Rating: domain.RatingAggregate{Average: 4.5, Count: 2, Breakdown: map[int]int{4: 1, 5: 1}},
	}}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/cafes?q=+Blue&tags=Quiet,Desserts&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Blue", f.cafes.gotTerm)
	assert.Equal(t, []string{"Quiet", "Desserts"}, f.cafes.gotTags)
	assert.Equal(t, 5, f.cafes.gotLimit)

	body := decode[cafeListResponse](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, 4.5, body.Items[0].Rating.Average)
	assert.Equal(t, map[string]int{"1": 0, "2": 0, "3": 0, "4": 1, "5": 1}, body.Items[0].Rating.Breakdown)
	assert.Equal(t, []string{}, body.Items[0].Images)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/cafes?tags=Vegan&tags=Dog+friendly,Vegan", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "café tags are free text")
	assert.Equal(t, []string{"Vegan", "Dog friendly"}, f.cafes.gotTags)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/cafes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, publicapp.DefaultSearchLimit, f.cafes.gotLimit)
}

func TestCafeDetail(t *testing.T) {
	f := newFixture(t)
	f.cafes.detailByID["c1"] = domain.Cafe{ID: "c1", Name: "Blue Bottle"}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/cafes/c1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Blue Bottle", decode[cafeResponse](t, rec).Name)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/cafes/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func ratingRequest(t *testing.T, fields map[string]string, images int) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i := 0; i < images; i++ {
		part, err := mw.CreateFormFile("images", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cafes/c1/ratings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer abc")
	return req
}

func TestRatingCreate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(ratingRequest(t, map[string]string{"rating": "4", "comment": " Lovely ", "tags": "Quiet,Good Coffee"}, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, f.ratings.submitted, 1)
	cmd := f.ratings.submitted[0]
	assert.Equal(t, "c1", cmd.CafeID)
	assert.Equal(t, "user-1", cmd.AuthorID)
	assert.Equal(t, "Ana", cmd.AuthorName)
	assert.Equal(t, 4, cmd.Stars)
	assert.Equal(t, "Lovely", cmd.Comment)
	assert.Equal(t, []string{"Quiet", "Good Coffee"}, cmd.Tags)
	require.Len(t, cmd.Images, 2)
	assert.Equal(t, "image/png", cmd.Images[0].ContentType)

	body := decode[ratingResponse](t, rec)
	assert.Equal(t, 4, body.Rating)
	assert.Equal(t, 0, body.Helpful)
}

func TestRatingCreate_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		fields map[string]string
		images int
		status int
	}{
		{"stars out of range", map[string]string{"rating": "6", "comment": "Nice"}, 0, http.StatusBadRequest},
		{"stars not a number", map[string]string{"rating": "four", "comment": "Nice"}, 0, http.StatusBadRequest},
		{"unknown tag", map[string]string{"rating": "3", "comment": "Nice", "tags": "Karaoke"}, 0, http.StatusBadRequest},
		{"too many images", map[string]string{"rating": "3", "comment": "Nice"}, 6, http.StatusBadRequest},
		{"comment too long", map[string]string{"rating": "3", "comment": strings.Repeat("a", 2001)}, 0, http.StatusBadRequest},
		{"missing comment", map[string]string{"rating": "3"}, 0, http.StatusBadRequest},
		{"blank comment", map[string]string{"rating": "3", "comment": "   "}, 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(ratingRequest(t, tt.fields, tt.images))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, f.ratings.submitted)

	unauth := ratingRequest(t, map[string]string{"rating": "3", "comment": "Nice"}, 0)
	unauth.Header.Del("Authorization")
	assert.Equal(t, http.StatusUnauthorized, f.do(unauth).Code)

	f.ratings.submitErr = publicapp.ErrCafeNotFound
	assert.Equal(t, http.StatusNotFound, f.do(ratingRequest(t, map[string]string{"rating": "3", "comment": "Nice"}, 0)).Code)
}

func TestRatingHelpful_ReusesVoterCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/ratings/r1/helpful", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	second := httptest.NewRequest(http.MethodPost, "/ratings/r1/helpful", strings.NewReader(`{"helpful":false}`))
	second.AddCookie(cookies[0])
	rec = f.do(second)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "valid cookie is not reissued")

	require.Len(t, f.ratings.voters, 2)
	assert.Equal(t, f.ratings.voters[0], f.ratings.voters[1])
	assert.Equal(t, false, decode[map[string]any](t, rec)["helpful"])

	tampered := httptest.NewRequest(http.MethodPost, "/ratings/r1/helpful", nil)
	tampered.AddCookie(&http.Cookie{Name: helpfulCookieName, Value: strings.Replace(cookies[0].Value, "sig=", "sig=x", 1)})
	rec = f.do(tampered)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Result().Cookies(), 1)
	assert.NotEqual(t, f.ratings.voters[0], f.ratings.voters[2])

	f.ratings.toggleErr = publicapp.ErrRatingNotFound
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodPost, "/ratings/r9/helpful", nil)).Code)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
		`{"email":"ana@example.com","password":"correct-horse","name":"Ana","username":"ana","type":"cafe_owner"}`))
	req.Header.Set(sessionHeader, "tab-1")
	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.AccountTypeCafeOwner, f.auth.gotRegister.Type)
	require.NotNil(t, f.auth.gotSession)
	assert.Equal(t, "tab-1", f.auth.gotSession.ID())
	assert.Equal(t, "token-user-1", decode[authResponse](t, rec).Token)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
		`{"email":"not-an-email","password":"short","name":"","username":"a"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.auth.registerErr = publicapp.ErrEmailTaken
	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
		`{"email":"ana@example.com","password":"correct-horse","name":"Ana","username":"ana"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
		`{"email":"ana@example.com","password":"wrong-horse"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
		`{"email":"ana@example.com","password":"correct-horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer token-user-1")
	rec = f.do(logout)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "token-user-1", f.auth.logoutToken)
}

func TestSocialLogin(t *testing.T) {
	f := newFixture(t)

	f.auth.social = &publicapp.SocialLoginResult{Pending: true, State: "s1", RedirectURL: "https://accounts.example.test/auth?state=s1"}
	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/social/google", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode[socialLoginResponse](t, rec)
	assert.True(t, body.Pending)
	assert.Equal(t, "s1", body.State)

	f.auth.social = &publicapp.SocialLoginResult{AuthResult: *f.auth.result(), IsNewUser: true}
	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/social/apple", strings.NewReader(`{"idToken":"abc"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[socialLoginResponse](t, rec)
	assert.True(t, body.IsNewUser)
	require.NotNil(t, body.User)
	assert.Equal(t, "user-1", body.User.ID)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/social/myspace", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.auth.social, f.auth.socialErr = nil, publicapp.ErrInvalidIDToken
	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/social/google", strings.NewReader(`{"idToken":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/redirect-result", strings.NewReader(`{"state":"s1","idToken":"abc"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthEvents_StreamsSessionState(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/auth/events?session=tab-9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var event authEventResponse
	require.NoError(t, conn.ReadJSON(&event))
	assert.Nil(t, event.User)

	sess := f.sessions.Get("tab-9")
	sess.SignIn(context.Background(), "user-1")
	require.NoError(t, conn.ReadJSON(&event))
	require.NotNil(t, event.User)
	assert.Equal(t, "Ana", event.User.Name)

	sess.SignOut(context.Background())
	require.NoError(t, conn.ReadJSON(&event))
	assert.Nil(t, event.User)
}

func TestAuthEvents_RequiresSession(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
