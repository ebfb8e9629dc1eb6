package post

import "context"

// Repository is durable post storage. Implementations assign ids and
// timestamps, and enforce ownership on Update and Delete.
//
// Update stamps PublishedAt when the post moves from draft to published or
// when Edit.Republish is set, keeps it on a plain save of a published
// post, and clears it when the post goes back to draft.
//
// Unknown ids yield ErrNotFound; ids owned by someone else yield
// ErrForbidden. Delete checks existence before ownership.
type Repository interface {
	Create(ctx context.Context, ownerID string, e Edit) (*Post, error)
	Update(ctx context.Context, id, ownerID string, e Edit) (*Post, error)
	Delete(ctx context.Context, id, ownerID string) error
	GetByID(ctx context.Context, id string) (*Post, error)

	// ListByOwner returns every post of ownerID, most recently updated first.
	ListByOwner(ctx context.Context, ownerID string) ([]Post, error)

	// ListPublished returns published posts, most recently published first.
	ListPublished(ctx context.Context) ([]Post, error)
}
