package store

import (
	"sort"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// PendingFlags reports which operations have a request in flight
type PendingFlags struct {
	ListingActive    bool
	Fetching         bool
	Creating         bool
	Updating         bool
	MovingToTrash    bool
	ListingTrash     bool
	Restoring        bool
	EmptyingTrash    bool
	Deleting         bool
	TogglingFavorite bool
	ListingFavorites bool
	Searching        bool
	ListingByTag     bool
	FetchingVersions bool
	RestoringVersion bool
}

// Any reports whether any operation is in flight
func (p PendingFlags) Any() bool {
	return p != PendingFlags{}
}

// Outcome holds the one-shot success flags of write operations.
// They stay set until reset or until the same op is requested again.
type Outcome struct {
	IsCreated           bool
	IsUpdated           bool
	IsMovedToTrash      bool
	IsRestoredFromTrash bool
	IsTrashEmptied      bool
	IsDeleted           bool
	IsVersionRestored   bool
}

// State is the client-side view of a user's snippets
type State struct {
	Active        []models.Snippet
	Trashed       []models.Snippet
	Favorites     []models.Snippet
	SearchResults []models.Snippet
	TaggedResults []models.Snippet
	Current       *models.Snippet

	Versions      []models.Version
	VersionsOf    string
	VersionsStale bool

	Pagination  models.Pagination
	Outcome     Outcome
	LastError   *ErrorInfo
	LastMessage string

	// pending maps an op to the request id currently in flight
	pending map[Op]uint64
	// applied maps an op to the newest request id whose result was applied
	applied map[Op]uint64
	// favoriteOverlay holds optimistic, display-only favorite values
	favoriteOverlay map[string]bool
}

func newState() State {
	return State{
		Active:          []models.Snippet{},
		Trashed:         []models.Snippet{},
		Favorites:       []models.Snippet{},
		SearchResults:   []models.Snippet{},
		TaggedResults:   []models.Snippet{},
		Versions:        []models.Version{},
		Pagination:      models.NewPagination(1, 1, 0),
		pending:         make(map[Op]uint64),
		applied:         make(map[Op]uint64),
		favoriteOverlay: make(map[string]bool),
	}
}

// Pending reports whether op has a request in flight
func (s State) Pending(op Op) bool {
	_, ok := s.pending[op]
	return ok
}

// Flags returns the named pending flags
func (s State) Flags() PendingFlags {
	return PendingFlags{
		ListingActive:    s.Pending(OpListActive),
		Fetching:         s.Pending(OpFetchOne),
		Creating:         s.Pending(OpCreate),
		Updating:         s.Pending(OpUpdate),
		MovingToTrash:    s.Pending(OpMoveToTrash),
		ListingTrash:     s.Pending(OpListTrash),
		Restoring:        s.Pending(OpRestoreFromTrash),
		EmptyingTrash:    s.Pending(OpEmptyTrash),
		Deleting:         s.Pending(OpDeleteForever),
		TogglingFavorite: s.Pending(OpToggleFavorite),
		ListingFavorites: s.Pending(OpListFavorites),
		Searching:        s.Pending(OpSearch),
		ListingByTag:     s.Pending(OpListByTag),
		FetchingVersions: s.Pending(OpFetchVersions),
		RestoringVersion: s.Pending(OpRestoreVersion),
	}
}

// DisplayFavorite returns the favorite flag a view should render for id,
// honoring an optimistic local toggle when one is outstanding.
func (s State) DisplayFavorite(id string) bool {
	if v, ok := s.favoriteOverlay[id]; ok {
		return v
	}
	if i := indexOf(s.Active, id); i >= 0 {
		return s.Active[i].IsFavorite
	}
	if s.Current != nil && s.Current.ID == id {
		return s.Current.IsFavorite
	}
	return indexOf(s.Favorites, id) >= 0
}

// KnownTags returns the sorted set of tags used by active snippets
func (s State) KnownTags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, sn := range s.Active {
		for _, t := range sn.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// clone returns a deep copy that shares nothing with s
func (s State) clone() State {
	c := s
	c.Active = cloneSnippets(s.Active)
	c.Trashed = cloneSnippets(s.Trashed)
	c.Favorites = cloneSnippets(s.Favorites)
	c.SearchResults = cloneSnippets(s.SearchResults)
	c.TaggedResults = cloneSnippets(s.TaggedResults)
	if s.Current != nil {
		cur := s.Current.Clone()
		c.Current = &cur
	}
	c.Versions = make([]models.Version, len(s.Versions))
	for i, v := range s.Versions {
		v.Tags = append([]string(nil), v.Tags...)
		c.Versions[i] = v
	}
	if s.LastError != nil {
		e := *s.LastError
		c.LastError = &e
	}
	c.pending = make(map[Op]uint64, len(s.pending))
	for k, v := range s.pending {
		c.pending[k] = v
	}
	c.applied = make(map[Op]uint64, len(s.applied))
	for k, v := range s.applied {
		c.applied[k] = v
	}
	c.favoriteOverlay = make(map[string]bool, len(s.favoriteOverlay))
	for k, v := range s.favoriteOverlay {
		c.favoriteOverlay[k] = v
	}
	return c
}

func cloneSnippets(in []models.Snippet) []models.Snippet {
	out := make([]models.Snippet, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func indexOf(list []models.Snippet, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func removeByID(list []models.Snippet, id string) []models.Snippet {
	out := list[:0:0]
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// upsert replaces the entry with the same id, or appends when absent
func upsert(list []models.Snippet, sn models.Snippet) []models.Snippet {
	if i := indexOf(list, sn.ID); i >= 0 {
		list[i] = reconcile(list[i], sn)
		return list
	}
	return append(list, sn)
}

// replaceExisting replaces the entry with the same id and never inserts
func replaceExisting(list []models.Snippet, sn models.Snippet) []models.Snippet {
	if i := indexOf(list, sn.ID); i >= 0 {
		list[i] = reconcile(list[i], sn)
	}
	return list
}

// reconcile picks between two copies of the same snippet. A response that
// carries an older updatedAt than what is held never wins. A response
// without updatedAt cannot be ordered and is taken as is.
func reconcile(held, incoming models.Snippet) models.Snippet {
	if !incoming.UpdatedAt.IsZero() && incoming.UpdatedAt.Before(held.UpdatedAt) {
		return held
	}
	return incoming
}
