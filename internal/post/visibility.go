package post

type viewerState uint8

const (
	viewerPending viewerState = iota
	viewerAnonymous
	viewerAuthenticated
)

// Viewer is the identity a request acts as. The zero value is a viewer
// whose identity is still being resolved.
type Viewer struct {
	state viewerState
	id    string
}

func PendingViewer() Viewer {
	return Viewer{state: viewerPending}
}

func Anonymous() Viewer {
	return Viewer{state: viewerAnonymous}
}

// Authenticated returns a viewer signed in as userID. An empty userID
// yields an anonymous viewer.
func Authenticated(userID string) Viewer {
	if userID == "" {
		return Anonymous()
	}
	return Viewer{state: viewerAuthenticated, id: userID}
}

func (v Viewer) Resolved() bool {
	return v.state != viewerPending
}

func (v Viewer) UserID() (string, bool) {
	return v.id, v.state == viewerAuthenticated
}

// Require returns the viewer's user id, or the reason there is none.
func (v Viewer) Require() (string, error) {
	switch v.state {
	case viewerPending:
		return "", ErrIdentityPending
	case viewerAnonymous:
		return "", ErrUnauthenticated
	}
	return v.id, nil
}

func (v Viewer) owns(p Post) bool {
	id, ok := v.UserID()
	return ok && id == p.UserID
}

// CanView reports whether v may read p. Published posts are readable by
// everyone; drafts only by their owner.
func CanView(p Post, v Viewer) bool {
	if p.Status == Published {
		return true
	}
	return v.owns(p)
}

// CanEdit reports whether v may edit or delete p.
func CanEdit(p Post, v Viewer) bool {
	return v.owns(p)
}

// Authorize returns nil when v may edit p.
func Authorize(p Post, v Viewer) error {
	if !v.Resolved() {
		return ErrIdentityPending
	}
	if !CanEdit(p, v) {
		return ErrForbidden
	}
	return nil
}
