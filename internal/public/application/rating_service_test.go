package application

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newRatingService(store *memoryStore, blobs BlobStore, rec SubmissionRecorder, allowOrphans bool) RatingCommandService {
	return NewRatingCommandService(RatingServiceConfig{
		Ratings:      store,
		Cafes:        store,
		Blobs:        blobs,
		Recorder:     rec,
		AllowOrphans: allowOrphans,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestSubmitRating_UpdatesAggregate(t *testing.T) {
	store := newMemoryStore(domain.Cafe{
		ID:   "c1",
		Name: "Bean There",
		Rating: domain.RatingAggregate{
			Average:   4.5,
			Count:     2,
			Breakdown: map[int]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 1},
		},
	})
	rec := &countingRecorder{}
	svc := newRatingService(store, &fakeBlobs{}, rec, false)

	rating, err := svc.Submit(context.Background(), SubmitRatingCommand{
		CafeID:   "c1",
		AuthorID: "u1",
		Stars:    3,
		Comment:  "decent flat white",
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", rating.CafeID)
	assert.Equal(t, 0, rating.Helpful)
	assert.Empty(t, rating.Images)
	assert.Equal(t, fixedNow, rating.CreatedAt)

	agg := store.cafe("c1").Rating
	assert.Equal(t, 3, agg.Count)
	assert.Equal(t, 4.0, agg.Average)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 1, 5: 1}, agg.Breakdown)
	assert.Equal(t, []int{3}, rec.submitted)
}

func TestSubmitRating_IdenticalSubmissionsAreNotDeduplicated(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1", Name: "Bean There"})
	svc := newRatingService(store, nil, nil, false)

	cmd := SubmitRatingCommand{CafeID: "c1", AuthorID: "u1", Stars: 5, Comment: "great"}
	first, err := svc.Submit(context.Background(), cmd)
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), cmd)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	agg := store.cafe("c1").Rating
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 2, agg.Breakdown[5])
	assert.Equal(t, 5.0, agg.Average)
}

func TestSubmitRating_InvalidStars(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1"})
	svc := newRatingService(store, nil, nil, false)

	for _, stars := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), SubmitRatingCommand{CafeID: "c1", Stars: stars, Comment: "x"})
		assert.ErrorIs(t, err, ErrInvalidStars)
	}
	assert.Equal(t, 0, store.cafe("c1").Rating.Count)
}

func TestSubmitRating_MissingCafe(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		store := newMemoryStore()
		blobs := &fakeBlobs{}
		svc := newRatingService(store, blobs, nil, false)

		_, err := svc.Submit(context.Background(), SubmitRatingCommand{
			CafeID: "missing",
			Stars:  4,
			Images: []ImageUpload{{Data: []byte("jpg")}},
		})
		assert.ErrorIs(t, err, ErrCafeNotFound)
		assert.Empty(t, store.ratings)
		assert.Zero(t, blobs.calls, "no uploads for a missing café")
	})

	t.Run("orphan kept when allowed", func(t *testing.T) {
		store := newMemoryStore()
		svc := newRatingService(store, nil, nil, true)

		rating, err := svc.Submit(context.Background(), SubmitRatingCommand{CafeID: "missing", Stars: 4, Comment: "ok"})
		require.NoError(t, err)
		require.Len(t, store.ratings, 1)
		assert.Equal(t, rating.ID, store.ratings[0].ID)
	})
}

func TestSubmitRating_ImageUploadsAreBestEffort(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1"})
	blobs := &fakeBlobs{failIndex: map[int]bool{1: true}}
	rec := &countingRecorder{}
	svc := newRatingService(store, blobs, rec, false)

	rating, err := svc.Submit(context.Background(), SubmitRatingCommand{
		CafeID: "c1",
		Stars:  5,
		Images: []ImageUpload{{Data: []byte("a")}, {Data: []byte("b")}, {Data: []byte("c")}},
	})
	require.NoError(t, err)

	ms := fixedNow.UnixMilli()
	require.Len(t, rating.Images, 2)
	assert.Equal(t, "https://media.example.test/"+RatingImageKey("c1", rating.ID, 0, fixedNow), rating.Images[0])
	assert.Equal(t, "https://media.example.test/"+RatingImageKey("c1", rating.ID, 2, fixedNow), rating.Images[1])
	assert.Contains(t, blobs.keys[1], "/image_2_")
	assert.Equal(t, 1, rec.failures)
	assert.Equal(t, 1, store.cafe("c1").Rating.Count)
	assert.Equal(t, "rating-images/c1/"+rating.ID+"/image_0_"+strconv.FormatInt(ms, 10)+".jpg", blobs.keys[0])
}

func TestSubmitRating_StoreFailureLeavesNoState(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1"})
	store.failTx = errors.New("transaction aborted")
	svc := newRatingService(store, nil, nil, false)

	_, err := svc.Submit(context.Background(), SubmitRatingCommand{CafeID: "c1", Stars: 2})
	require.Error(t, err)
	assert.Empty(t, store.ratings)
	assert.Equal(t, 0, store.cafe("c1").Rating.Count)
}

func TestToggleHelpful(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1"})
	svc := newRatingService(store, nil, nil, false)
	rating, err := svc.Submit(context.Background(), SubmitRatingCommand{CafeID: "c1", Stars: 4})
	require.NoError(t, err)

	count, err := svc.ToggleHelpful(context.Background(), rating.ID, "voter-a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.ToggleHelpful(context.Background(), rating.ID, "voter-a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "second vote from the same voter is ignored")

	count, err = svc.ToggleHelpful(context.Background(), rating.ID, "voter-a", false)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = svc.ToggleHelpful(context.Background(), "nope", "voter-a", true)
	assert.ErrorIs(t, err, ErrRatingNotFound)
}

func TestListRatings_NewestFirst(t *testing.T) {
	store := newMemoryStore(domain.Cafe{ID: "c1"})
	now := fixedNow
	svc := NewRatingCommandService(RatingServiceConfig{
		Ratings: store,
		Cafes:   store,
		Now: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
	})
	for _, stars := range []int{1, 2, 3} {
		_, err := svc.Submit(context.Background(), SubmitRatingCommand{CafeID: "c1", Stars: stars})
		require.NoError(t, err)
	}

	ratings, err := NewRatingQueryService(store).ListByCafe(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, ratings, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{ratings[0].Stars, ratings[1].Stars, ratings[2].Stars})
}
