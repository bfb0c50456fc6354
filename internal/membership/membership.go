// Package membership tracks the boards the current user can see and which
// one is selected.
package membership

import (
	"errors"
	"sort"
	"sync"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrUnknownBoard   = errors.New("board is not visible to this user")
)

// Entry is a visible board and whether the user owns it
type Entry struct {
	Board   model.Board
	IsOwner bool
}

// Merge combines owned and collaborator boards. Owned boards win on id
// collisions, duplicates are dropped and the result is newest first.
func Merge(owned, collab []model.Board) []Entry {
	seen := make(map[string]bool, len(owned)+len(collab))
	out := make([]Entry, 0, len(owned)+len(collab))
	for _, b := range owned {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, Entry{Board: b, IsOwner: true})
	}
	for _, b := range collab {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, Entry{Board: b})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Board.CreatedAt.Millis() > out[j].Board.CreatedAt.Millis()
	})
	return out
}

// Choose applies the selection policy to a merged list. A current selection
// that is still present sticks; otherwise the last used board wins when
// present, then the first board, then none.
func Choose(entries []Entry, current, lastUsed string) string {
	if current != "" && indexOf(entries, current) >= 0 {
		return current
	}
	if lastUsed != "" && indexOf(entries, lastUsed) >= 0 {
		return lastUsed
	}
	if len(entries) > 0 {
		return entries[0].Board.ID
	}
	return ""
}

func indexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.Board.ID == id {
			return i
		}
	}
	return -1
}

// State is what listeners receive after every merge.
// Seq increases with every published state.
type State struct {
	Boards     []Entry
	SelectedID string
	Err        error
	Seq        uint64
}

// Selected returns the selected entry
func (s State) Selected() (Entry, bool) {
	if i := indexOf(s.Boards, s.SelectedID); i >= 0 {
		return s.Boards[i], true
	}
	return Entry{}, false
}

// Memory persists the last used board id. Implementations log their own
// failures and report "" when nothing usable is stored.
type Memory interface {
	LastBoard() string
	SetLastBoard(id string)
}

// Resolver maintains the owned and collaborator subscriptions
type Resolver struct {
	store  store.Store
	user   model.User
	memory Memory
	log    *logger.Logger

	mu        sync.Mutex
	gen       uint64
	owned     []model.Board
	collab    []model.Board
	ownedErr  error
	collabErr error
	state     State
	unsubs    []store.Unsubscribe
	listeners map[int]func(State)
	nextID    int
	seq       uint64

	notifyMu  sync.Mutex
	delivered uint64

	// selection waits until both streams delivered once
	ownedSeen  bool
	collabSeen bool
}

// NewResolver creates a stopped resolver. memory may be nil.
func NewResolver(s store.Store, user model.User, memory Memory, log *logger.Logger) *Resolver {
	return &Resolver{
		store:     s,
		user:      user,
		memory:    memory,
		log:       log.With(logger.F("component", "membership"), logger.F("user_id", user.ID)),
		listeners: make(map[int]func(State)),
	}
}

// Start opens both live subscriptions. Calling Start again restarts them.
func (r *Resolver) Start() error {
	if r.user.ID == "" {
		return ErrUserIDRequired
	}
	r.Stop()

	email := r.user.NormalizedEmail()
	r.mu.Lock()
	gen := r.gen
	r.collabSeen = email == ""
	r.mu.Unlock()

	owned, err := r.store.Subscribe(store.BoardsCollection,
		[]store.Filter{store.Eq("owner", r.user.ID)},
		func(docs []store.Document) { r.onBoards(gen, true, docs, nil) },
		func(err error) { r.onBoards(gen, true, nil, err) },
	)
	if err != nil {
		return err
	}
	unsubs := []store.Unsubscribe{owned}

	if email != "" {
		collab, err := r.store.Subscribe(store.BoardsCollection,
			[]store.Filter{store.ArrayContains("collaborators", email)},
			func(docs []store.Document) { r.onBoards(gen, false, docs, nil) },
			func(err error) { r.onBoards(gen, false, nil, err) },
		)
		if err != nil {
			owned()
			return err
		}
		unsubs = append(unsubs, collab)
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return nil
	}
	r.unsubs = unsubs
	r.mu.Unlock()
	r.log.Info("board membership started")
	return nil
}

// Stop releases both subscriptions and clears all state
func (r *Resolver) Stop() {
	r.mu.Lock()
	r.gen++
	unsubs := r.unsubs
	r.unsubs = nil
	r.owned, r.collab = nil, nil
	r.ownedErr, r.collabErr = nil, nil
	r.ownedSeen, r.collabSeen = false, false
	r.state = State{}
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Listen registers fn for every state change and returns its remover
func (r *Resolver) Listen(fn func(State)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// State returns the latest merged state
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Ready reports whether both streams have delivered since Start
func (r *Resolver) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownedSeen && r.collabSeen
}

// Select makes id the selected board and remembers it as last used
func (r *Resolver) Select(id string) error {
	r.mu.Lock()
	if indexOf(r.state.Boards, id) < 0 {
		r.mu.Unlock()
		return ErrUnknownBoard
	}
	r.state.SelectedID = id
	st := r.publishLocked(r.state)
	r.mu.Unlock()

	if r.memory != nil {
		r.memory.SetLastBoard(id)
	}
	r.notify(st)
	return nil
}

func (r *Resolver) onBoards(gen uint64, owned bool, docs []store.Document, err error) {
	boards := decodeBoards(docs, r.log)

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	if owned {
		r.owned, r.ownedErr, r.ownedSeen = boards, err, true
	} else {
		r.collab, r.collabErr, r.collabSeen = boards, err, true
	}
	entries := Merge(r.owned, r.collab)

	current := r.state.SelectedID
	if current != "" && indexOf(entries, current) < 0 {
		r.log.Info("selected board no longer visible", logger.F("board_id", current))
		current = ""
	}
	selected := current
	remember := ""
	if r.ownedSeen && r.collabSeen {
		lastUsed := ""
		if current == "" && r.memory != nil {
			lastUsed = r.memory.LastBoard()
		}
		selected = Choose(entries, current, lastUsed)
		if selected != "" && selected != current && selected != lastUsed {
			remember = selected
		}
	}
	st := r.publishLocked(State{
		Boards:     entries,
		SelectedID: selected,
		Err:        errors.Join(r.ownedErr, r.collabErr),
	})
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("board subscription failed", logger.F("owned", owned), logger.Err(err))
	}
	if remember != "" && r.memory != nil {
		r.memory.SetLastBoard(remember)
	}
	r.notify(st)
}

// publishLocked stamps st and makes it current. Callers hold r.mu.
func (r *Resolver) publishLocked(st State) State {
	r.seq++
	st.Seq = r.seq
	r.state = st
	return st
}

// notify hands st to listeners unless a newer state already went out
func (r *Resolver) notify(st State) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if st.Seq <= r.delivered {
		return
	}
	r.delivered = st.Seq

	r.mu.Lock()
	fns := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func decodeBoards(docs []store.Document, log *logger.Logger) []model.Board {
	boards := make([]model.Board, 0, len(docs))
	for _, doc := range docs {
		var b model.Board
		if err := doc.Decode(&b); err != nil {
			log.Warn("skipping undecodable board", logger.F("board_id", doc.ID), logger.Err(err))
			continue
		}
		b.ID = doc.ID
		boards = append(boards, b)
	}
	return boards
}
