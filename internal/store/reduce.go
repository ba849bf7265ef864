package store

import (
	"github.com/MohamedElashri/snipvault/internal/models"
)

// outcomeOps are the ops that carry a one-shot success flag and a message
var outcomeOps = map[Op]bool{
	OpCreate:           true,
	OpUpdate:           true,
	OpMoveToTrash:      true,
	OpRestoreFromTrash: true,
	OpEmptyTrash:       true,
	OpDeleteForever:    true,
	OpRestoreVersion:   true,
}

// replaceOps replace a whole collection on success; an older request than one
// already applied for the same op is dropped.
var replaceOps = map[Op]bool{
	OpListActive:    true,
	OpFetchOne:      true,
	OpListTrash:     true,
	OpListFavorites: true,
	OpSearch:        true,
	OpListByTag:     true,
	OpFetchVersions: true,
}

// reduce applies ev to s. It is the only place state changes.
func reduce(s *State, ev Event) {
	switch ev.Phase {
	case PhaseRequested:
		s.pending[ev.Op] = ev.Request
		s.LastError = nil
		if outcomeOps[ev.Op] {
			setOutcome(&s.Outcome, ev.Op, false)
			s.LastMessage = ""
		}
	case PhaseSucceeded:
		clearPending(s, ev)
		if replaceOps[ev.Op] && ev.Request != 0 {
			if ev.Request < s.applied[ev.Op] {
				return
			}
			s.applied[ev.Op] = ev.Request
		}
		applySuccess(s, ev.Op, ev.Payload)
		s.LastError = nil
		if ev.Payload.Message != "" {
			s.LastMessage = ev.Payload.Message
		}
		setOutcome(&s.Outcome, ev.Op, true)
	case PhaseFailed:
		clearPending(s, ev)
		if ev.Op == OpToggleFavorite && ev.Payload.ID != "" {
			delete(s.favoriteOverlay, ev.Payload.ID)
		}
		// a newer request for the same op has already been applied
		if ev.Request != 0 && ev.Request < s.applied[ev.Op] {
			return
		}
		info := ErrorInfo{Op: ev.Op, Kind: KindRemote}
		if ev.Err != nil {
			info = *ev.Err
			info.Op = ev.Op
		}
		s.LastError = &info
		setOutcome(&s.Outcome, ev.Op, false)
		if outcomeOps[ev.Op] {
			s.LastMessage = ""
		}
	case PhaseTimedOut:
		req, ok := s.pending[ev.Op]
		if !ok || req != ev.Request {
			return
		}
		delete(s.pending, ev.Op)
		s.LastError = &ErrorInfo{Op: ev.Op, Kind: KindTimeout, Message: TimeoutMessage}
		setOutcome(&s.Outcome, ev.Op, false)
	case PhaseLocal:
		applyLocal(s, ev)
	}
}

func clearPending(s *State, ev Event) {
	req, ok := s.pending[ev.Op]
	if !ok {
		return
	}
	if ev.Request == 0 || req == ev.Request {
		delete(s.pending, ev.Op)
	}
}

func applySuccess(s *State, op Op, p Payload) {
	switch op {
	case OpListActive:
		s.Active = cloneSnippets(p.Snippets)
		if p.Pagination != nil {
			s.Pagination = *p.Pagination
		}
	case OpFetchOne:
		if p.Snippet == nil {
			return
		}
		sn := p.Snippet.Clone()
		if s.Current != nil && s.Current.ID == sn.ID {
			sn = reconcile(*s.Current, sn)
		}
		if s.VersionsOf != "" && s.VersionsOf != sn.ID {
			clearVersions(s)
		}
		s.Current = &sn
	case OpCreate:
		if p.Snippet == nil {
			return
		}
		s.Active = upsert(s.Active, p.Snippet.Clone())
	case OpUpdate, OpRestoreVersion:
		if p.Snippet == nil {
			return
		}
		replaceEverywhere(s, p.Snippet.Clone())
		if op == OpRestoreVersion && s.VersionsOf == p.Snippet.ID {
			s.VersionsStale = true
		}
	case OpMoveToTrash:
		moveToTrash(s, p.ID)
	case OpListTrash:
		s.Trashed = cloneSnippets(p.Snippets)
	case OpRestoreFromTrash:
		if p.Snippet == nil {
			return
		}
		sn := p.Snippet.Clone()
		s.Trashed = removeByID(s.Trashed, sn.ID)
		s.Active = upsert(s.Active, sn)
		if sn.IsFavorite {
			s.Favorites = upsert(s.Favorites, sn.Clone())
		}
	case OpEmptyTrash:
		if s.Current != nil && indexOf(s.Trashed, s.Current.ID) >= 0 {
			s.Current = nil
		}
		s.Trashed = []models.Snippet{}
	case OpDeleteForever:
		deleteEverywhere(s, p.ID)
	case OpToggleFavorite:
		if p.Snippet == nil {
			return
		}
		toggleFavorite(s, p.Snippet.Clone())
	case OpListFavorites:
		s.Favorites = cloneSnippets(p.Snippets)
	case OpSearch:
		s.SearchResults = cloneSnippets(p.Snippets)
	case OpListByTag:
		s.TaggedResults = cloneSnippets(p.Snippets)
	case OpFetchVersions:
		s.Versions = make([]models.Version, len(p.Versions))
		for i, v := range p.Versions {
			v.Tags = append([]string(nil), v.Tags...)
			s.Versions[i] = v
		}
		s.VersionsOf = p.ID
		s.VersionsStale = false
	}
}

// replaceEverywhere replaces sn wherever a copy is held, never inserting
func replaceEverywhere(s *State, sn models.Snippet) {
	s.Active = replaceExisting(s.Active, sn)
	s.Favorites = replaceExisting(s.Favorites, sn)
	s.SearchResults = replaceExisting(s.SearchResults, sn)
	s.TaggedResults = replaceExisting(s.TaggedResults, sn)
	if s.Current != nil && s.Current.ID == sn.ID {
		cur := reconcile(*s.Current, sn)
		s.Current = &cur
	}
}

func moveToTrash(s *State, id string) {
	var known *models.Snippet
	for _, list := range [][]models.Snippet{s.Active, s.Favorites, s.SearchResults, s.TaggedResults} {
		if i := indexOf(list, id); i >= 0 {
			c := list[i].Clone()
			known = &c
			break
		}
	}
	if known == nil && s.Current != nil && s.Current.ID == id {
		c := s.Current.Clone()
		known = &c
	}

	s.Active = removeByID(s.Active, id)
	s.Favorites = removeByID(s.Favorites, id)
	s.SearchResults = removeByID(s.SearchResults, id)
	s.TaggedResults = removeByID(s.TaggedResults, id)
	delete(s.favoriteOverlay, id)

	if known != nil {
		s.Trashed = upsert(s.Trashed, *known)
	}
	if s.Current != nil && s.Current.ID == id {
		s.Current = nil
	}
}

func deleteEverywhere(s *State, id string) {
	s.Trashed = removeByID(s.Trashed, id)
	s.Active = removeByID(s.Active, id)
	s.Favorites = removeByID(s.Favorites, id)
	s.SearchResults = removeByID(s.SearchResults, id)
	s.TaggedResults = removeByID(s.TaggedResults, id)
	delete(s.favoriteOverlay, id)
	if s.Current != nil && s.Current.ID == id {
		s.Current = nil
	}
	if s.VersionsOf == id {
		clearVersions(s)
	}
}

func toggleFavorite(s *State, sn models.Snippet) {
	merge := func(list []models.Snippet) []models.Snippet {
		if i := indexOf(list, sn.ID); i >= 0 {
			merged := reconcile(list[i], sn)
			merged.IsFavorite = sn.IsFavorite
			list[i] = merged
		}
		return list
	}

	s.Active = merge(s.Active)
	s.SearchResults = merge(s.SearchResults)
	s.TaggedResults = merge(s.TaggedResults)

	if sn.IsFavorite {
		if i := indexOf(s.Active, sn.ID); i >= 0 {
			s.Favorites = upsert(s.Favorites, s.Active[i].Clone())
		} else {
			s.Favorites = upsert(s.Favorites, sn.Clone())
		}
	} else {
		s.Favorites = removeByID(s.Favorites, sn.ID)
	}

	if s.Current != nil && s.Current.ID == sn.ID {
		cur := reconcile(*s.Current, sn)
		cur.IsFavorite = sn.IsFavorite
		s.Current = &cur
	}
	delete(s.favoriteOverlay, sn.ID)
}

func applyLocal(s *State, ev Event) {
	switch ev.Action {
	case ActionClearSearchResults:
		s.SearchResults = []models.Snippet{}
	case ActionClearTaggedResults:
		s.TaggedResults = []models.Snippet{}
	case ActionClearVersions:
		clearVersions(s)
	case ActionClearError:
		s.LastError = nil
	case ActionClearMessage:
		s.LastMessage = ""
	case ActionResetOutcome:
		setOutcome(&s.Outcome, ev.Op, false)
	case ActionToggleFavoriteLocal:
		id := ev.Payload.ID
		if id == "" {
			return
		}
		current, ok := s.favoriteOverlay[id]
		if !ok {
			current = s.DisplayFavorite(id)
		}
		s.favoriteOverlay[id] = !current
	}
}

func clearVersions(s *State) {
	s.Versions = []models.Version{}
	s.VersionsOf = ""
	s.VersionsStale = false
}

func setOutcome(o *Outcome, op Op, v bool) {
	switch op {
	case OpCreate:
		o.IsCreated = v
	case OpUpdate:
		o.IsUpdated = v
	case OpMoveToTrash:
		o.IsMovedToTrash = v
	case OpRestoreFromTrash:
		o.IsRestoredFromTrash = v
	case OpEmptyTrash:
		o.IsTrashEmptied = v
	case OpDeleteForever:
		o.IsDeleted = v
	case OpRestoreVersion:
		o.IsVersionRestored = v
	}
}
