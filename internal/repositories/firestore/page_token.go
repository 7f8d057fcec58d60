package firestore

import (
	"fmt"
	"time"

	"github.com/pravesh-commerce/api/internal/platform/pagination"
)

// Listings order by (createdAt desc, id desc), so the resume cursor carries
// exactly those two values.
func encodeCreatedAtToken(createdAt time.Time, id string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), id},
	})
}

func decodeCreatedAtToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	rawCreatedAt, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", fmt.Errorf("%w: invalid createdAt component", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawCreatedAt)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("%w: invalid id component", pagination.ErrInvalidPageToken)
	}
	return createdAt, id, nil
}
