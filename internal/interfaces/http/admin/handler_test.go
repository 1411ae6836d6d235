package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type stubCafeService struct {
	cafes        map[string]admindomain.Cafe
	gotFilter    adminapp.CafeFilter
	gotPaging    adminapp.Paging
	registered   []adminapp.UpsertCafeCommand
	gotImages    []adminapp.ImageUpload
	updated      []adminapp.UpsertCafeCommand
	registerErr  error
	updateErr    error
	reconciled   []string
	reconcileAgg publicdomain.RatingAggregate
	reconcileErr error
}

func (s *stubCafeService) List(_ context.Context, filter adminapp.CafeFilter, paging adminapp.Paging) ([]admindomain.Cafe, error) {
	s.gotFilter, s.gotPaging = filter, paging
	out := make([]admindomain.Cafe, 0, len(s.cafes))
	for _, c := range s.cafes {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubCafeService) Detail(_ context.Context, id string) (*admindomain.Cafe, error) {
	c, ok := s.cafes[id]
	if !ok {
		return nil, adminapp.ErrCafeNotFound
	}
	return &c, nil
}

func (s *stubCafeService) Register(_ context.Context, cmd adminapp.UpsertCafeCommand, images []adminapp.ImageUpload) (*admindomain.Cafe, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	s.registered = append(s.registered, cmd)
	s.gotImages = images
	c := mustCafe("cafe-new", cmd.Name, cmd.ActorID)
	return &c, nil
}

func (s *stubCafeService) Update(_ context.Context, id string, cmd adminapp.UpsertCafeCommand) (*admindomain.Cafe, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if _, ok := s.cafes[id]; !ok {
		return nil, adminapp.ErrCafeNotFound
	}
	s.updated = append(s.updated, cmd)
	c := mustCafe(id, cmd.Name, cmd.ActorID)
	return &c, nil
}

func (s *stubCafeService) Reconcile(_ context.Context, id string) (*publicdomain.RatingAggregate, error) {
	s.reconciled = append(s.reconciled, id)
	if s.reconcileErr != nil {
		return nil, s.reconcileErr
	}
	agg := s.reconcileAgg
	return &agg, nil
}

func (s *stubCafeService) ReconcileAll(context.Context) (int, error) {
	return len(s.cafes), nil
}

func mustCafe(id, name, owner string) admindomain.Cafe {
	cafeName, err := admindomain.NewCafeName(name)
	if err != nil {
		panic(err)
	}
	location, err := admindomain.NewLocation("Lisbon")
	if err != nil {
		panic(err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return admindomain.Cafe{
		ID:        id,
		Name:      cafeName,
		Location:  location,
		Rating:    publicdomain.NewRatingAggregate(),
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newRouter(t *testing.T, svc *stubCafeService) chi.Router {
	t.Helper()
	h := NewHandler(Config{Logger: zaptest.NewLogger(t), CafeService: svc})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Test-User")
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := common.ContextWithUser(r.Context(), common.AuthenticatedUser{
				ID:          id,
				AccountType: r.Header.Get("X-Test-Account"),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/admin", h.Register)
	return r
}

func ownerRequest(method, target string, body *bytes.Buffer, contentType string) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Test-User", "owner-1")
	req.Header.Set("X-Test-Account", "cafe_owner")
	return req
}

func TestAdminRoutes_RequireCafeOwner(t *testing.T) {
	router := newRouter(t, &stubCafeService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cafes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/cafes", nil)
	req.Header.Set("X-Test-User", "user-1")
	req.Header.Set("X-Test-Account", "normal")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCafeList_PassesFilterAndPaging(t *testing.T) {
	svc := &stubCafeService{cafes: map[string]admindomain.Cafe{"c1": mustCafe("c1", "Bean There", "owner-1")}}
	router := newRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodGet, "/admin/cafes?keyword=bean&mine=true&page=2&limit=5", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "bean", svc.gotFilter.Keyword)
	assert.Equal(t, "owner-1", svc.gotFilter.OwnerID)
	assert.Equal(t, adminapp.Paging{Page: 2, Limit: 5}, svc.gotPaging)

	var body adminCafeListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Bean There", body.Items[0].Name)
	assert.Equal(t, 0, body.Items[0].Rating.Breakdown["5"])
	assert.Empty(t, body.Items[0].Tags)
}

func TestCafeDetail_NotFound(t *testing.T) {
	router := newRouter(t, &stubCafeService{cafes: map[string]admindomain.Cafe{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodGet, "/admin/cafes/missing", nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartCafe(t *testing.T, payload string, images int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("cafe", payload))
	for i := 0; i < images; i++ {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="images"; filename="photo.png"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(pngHeader)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestCafeCreate_Multipart(t *testing.T) {
	svc := &stubCafeService{}
	router := newRouter(t, svc)

	body, contentType := multipartCafe(t, `{"name":"Bean There","location":"Lisbon","tags":["wifi"],"menu":{"drinks":["flat white"]},"contact":{"instagram":"beanthere"}}`, 2)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPost, "/admin/cafes", body, contentType))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, svc.registered, 1)
	cmd := svc.registered[0]
	assert.Equal(t, "owner-1", cmd.ActorID)
	assert.Equal(t, []string{"wifi"}, cmd.Tags)
	assert.Equal(t, []string{"flat white"}, cmd.Menu.Drinks)
	assert.Equal(t, "beanthere", cmd.Contact.Instagram)
	require.Len(t, svc.gotImages, 2)
	assert.Equal(t, "image/png", svc.gotImages[0].ContentType)

	var resp adminCafeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cafe-new", resp.ID)
	assert.Equal(t, "owner-1", resp.OwnerID)
}

func TestCafeCreate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		images  int
		svcErr  error
	}{
		{name: "unknown field", payload: `{"name":"A","location":"B","owner":"x"}`},
		{name: "missing name", payload: `{"location":"B"}`},
		{name: "too many images", payload: `{"name":"A","location":"B"}`, images: common.MaxCafeImageCount + 1},
		{name: "domain rejection", payload: `{"name":"A","location":"B"}`, svcErr: adminapp.ErrInvalidCafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCafeService{registerErr: tt.svcErr}
			router := newRouter(t, svc)
			body, contentType := multipartCafe(t, tt.payload, tt.images)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, ownerRequest(http.MethodPost, "/admin/cafes", body, contentType))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCafeUpdate(t *testing.T) {
	svc := &stubCafeService{cafes: map[string]admindomain.Cafe{"c1": mustCafe("c1", "Old", "owner-1")}}
	router := newRouter(t, svc)

	body := bytes.NewBufferString(`{"name":"New Name","location":"Porto"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPatch, "/admin/cafes/c1", body, "application/json"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.updated, 1)
	assert.Equal(t, "Porto", svc.updated[0].Location)

	svc.updateErr = adminapp.ErrNotCafeOwner
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPatch, "/admin/cafes/c1", bytes.NewBufferString(`{"name":"X","location":"Y"}`), "application/json"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCafeReconcile(t *testing.T) {
	agg := publicdomain.NewRatingAggregate()
	agg.Count, agg.Average, agg.Breakdown[4] = 2, 4, 2
	svc := &stubCafeService{
		cafes: map[string]admindomain.Cafe{
			"mine":   mustCafe("mine", "Mine", "owner-1"),
			"theirs": mustCafe("theirs", "Theirs", "owner-2"),
		},
		reconcileAgg: agg,
	}
	router := newRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPost, "/admin/cafes/mine/reconcile", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Rating.Count)
	assert.Equal(t, 2, resp.Rating.Breakdown["4"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPost, "/admin/cafes/theirs/reconcile", nil, ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"mine"}, svc.reconciled)
	assert.True(t, strings.Contains(rec.Body.String(), "error"))
}

func TestCafeReconcile_ConflictAfterRetries(t *testing.T) {
	svc := &stubCafeService{
		cafes:        map[string]admindomain.Cafe{"mine": mustCafe("mine", "Mine", "owner-1")},
		reconcileErr: fmt.Errorf("replace aggregate: %w", adminapp.ErrAggregateChanged),
	}
	router := newRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownerRequest(http.MethodPost, "/admin/cafes/mine/reconcile", nil, ""))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}
