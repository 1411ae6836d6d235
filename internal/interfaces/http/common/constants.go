package common

import "time"

const (
	// MaxCafeImageCount is the number of images an owner can attach to a café.
	MaxCafeImageCount = 10
	// MaxRatingImageCount is the number of images accepted per rating.
	MaxRatingImageCount = 5
	// MaxImageBytes limits a single uploaded image.
	MaxImageBytes = 5 << 20
	// MaxCommentRunes limits rating comments.
	MaxCommentRunes = 2000
	// MaxJSONRequestBody limits JSON request bodies.
	MaxJSONRequestBody = 1 << 20
	// MaxMultipartBody bounds a whole multipart request.
	MaxMultipartBody = MaxCafeImageCount*MaxImageBytes + MaxJSONRequestBody

	// RequestTimeout bounds each handler's use-case call.
	RequestTimeout = 5 * time.Second
)
