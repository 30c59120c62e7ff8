package internal

import "fmt"

// Inserted marks an IndexMap entry whose item was added during the turn.
const Inserted = -2

// IndexMap describes the net changes of a collection over one turn.
// Indices[i] is the index the item now at i had before the turn, or Inserted.
// Deleted lists the previous indices of the removed items.
type IndexMap struct {
	Indices []int
	Deleted []int
}

// IsIdentity reports whether the turn left the collection unchanged.
func (m IndexMap) IsIdentity() bool {
	if len(m.Deleted) > 0 {
		return false
	}

	for i, prev := range m.Indices {
		if prev != i {
			return false
		}
	}
	return true
}

// Inserts returns how many items were added during the turn.
func (m IndexMap) Inserts() int {
	n := 0
	for _, prev := range m.Indices {
		if prev == Inserted {
			n++
		}
	}
	return n
}

type CollectionKind int

const (
	KindList CollectionKind = iota
	KindMap
	KindSet
)

func (k CollectionKind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("CollectionKind(%d)", int(k))
	}
}

// Collection is the minimal view an observer needs of the collection it watches.
type Collection interface {
	Len() int
}

// CollectionObserver coalesces the mutations of one collection into one IndexMap per turn.
// The collection reports each mutation before applying it.
type CollectionObserver struct {
	kind CollectionKind
	coll Collection

	// pending changes of the current turn, nil when there are none
	indices []int
	deleted []int

	// the turn holding this observer, nil when it is in none
	turn *TurnQueue

	subs   Registry[CollectionSubscriber]
	length *LengthObserver
}

func NewCollectionObserver(kind CollectionKind, coll Collection) *CollectionObserver {
	return &CollectionObserver{kind: kind, coll: coll}
}

func (o *CollectionObserver) Kind() CollectionKind { return o.kind }

func (o *CollectionObserver) Collection() Collection { return o.coll }

// Track records the collection as a dependency of the running evaluation.
func (o *CollectionObserver) Track() {
	track(o)
}

func (o *CollectionObserver) Subscribe(s CollectionSubscriber) bool {
	return o.subs.Add(s)
}

func (o *CollectionObserver) Unsubscribe(s CollectionSubscriber) bool {
	return o.subs.Remove(s)
}

func (o *CollectionObserver) Subscribers() int {
	return o.subs.Len()
}

func (o *CollectionObserver) addDependent(d Dependent)    { o.subs.Add(d) }
func (o *CollectionObserver) removeDependent(d Dependent) { o.subs.Remove(d) }
func (o *CollectionObserver) level() int                  { return 0 }

// Pending reports whether changes are waiting for the end of the turn.
func (o *CollectionObserver) Pending() bool {
	return o.indices != nil
}

// Length returns the observer of the collection's length.
func (o *CollectionObserver) Length() *LengthObserver {
	if o.length == nil {
		o.length = &LengthObserver{coll: o}
	}
	return o.length
}

func (o *CollectionObserver) prepare() bool {
	if o.indices == nil {
		if o.subs.Len() == 0 {
			return false
		}

		n := o.coll.Len()
		o.indices = make([]int, n)
		for i := range o.indices {
			o.indices[i] = i
		}
	}

	// a mutation from another goroutine joins the mutating goroutine's turn too
	if turn := GetRuntime().turn; o.turn != turn {
		o.turn = turn
		turn.Enqueue(o)
	}
	return true
}

// Splice records the removal of deleteCount items at start followed by the insertion of insertCount items there.
func (o *CollectionObserver) Splice(start, deleteCount, insertCount int) {
	if deleteCount == 0 && insertCount == 0 {
		return
	}
	if !o.prepare() {
		return
	}

	end := min(start+deleteCount, len(o.indices))
	for _, prev := range o.indices[start:end] {
		if prev >= 0 {
			o.deleted = append(o.deleted, prev)
		}
	}

	// never nil: an emptied collection still has pending changes
	next := make([]int, 0, start+insertCount+len(o.indices)-end)
	next = append(next, o.indices[:start]...)
	for range insertCount {
		next = append(next, Inserted)
	}
	o.indices = append(next, o.indices[end:]...)
}

// Replace records the item at i being swapped for a new one.
func (o *CollectionObserver) Replace(i int) {
	if !o.prepare() {
		return
	}

	if prev := o.indices[i]; prev >= 0 {
		o.deleted = append(o.deleted, prev)
	}
	o.indices[i] = Inserted
}

// Permute records a reordering where the item now at i was at perm[i].
func (o *CollectionObserver) Permute(perm []int) {
	if !o.prepare() {
		return
	}

	next := make([]int, len(perm))
	for i, from := range perm {
		next[i] = o.indices[from]
	}
	o.indices = next
}

func (o *CollectionObserver) Clear() {
	if o.coll.Len() == 0 && o.indices == nil {
		return
	}

	o.Splice(0, o.coll.Len(), 0)
}

func (o *CollectionObserver) flushTurn() error {
	o.turn = nil
	if o.indices == nil {
		return nil
	}

	changes := IndexMap{Indices: o.indices, Deleted: o.deleted}
	o.indices = nil
	o.deleted = nil

	if changes.IsIdentity() {
		return nil
	}

	return o.subs.Notify(func(s CollectionSubscriber) error {
		return s.HandleCollectionChange(changes)
	})
}

// discardTurn drops the pending changes unless another turn has taken them over.
func (o *CollectionObserver) discardTurn(from *TurnQueue) {
	if o.turn != from {
		return
	}

	o.turn = nil
	o.indices = nil
	o.deleted = nil
}

// Resizer is implemented by collections whose length can be assigned.
type Resizer interface {
	SetLen(n int)
}

// LengthObserver observes the length of a collection, notifying (new, old) when a turn changes it.
type LengthObserver struct {
	coll *CollectionObserver

	value int
	subs  Registry[Subscriber]
}

func (l *LengthObserver) GetValue() any {
	track(l)
	return l.coll.coll.Len()
}

func (l *LengthObserver) SetValue(v any) error {
	n, ok := v.(int)
	if !ok {
		return fmt.Errorf("%w: %T for length", ErrTypeMismatch, v)
	}

	r, ok := l.coll.coll.(Resizer)
	if !ok {
		return ErrReadOnly
	}

	r.SetLen(n)
	return nil
}

func (l *LengthObserver) HandleCollectionChange(IndexMap) error {
	n := l.coll.coll.Len()
	if n == l.value {
		return nil
	}

	old := l.value
	l.value = n

	return l.subs.Notify(func(s Subscriber) error {
		return s.HandleChange(n, old)
	})
}

func (l *LengthObserver) Subscribe(s Subscriber) bool {
	if !l.subs.Add(s) {
		return false
	}

	if l.subs.Len() == 1 {
		l.value = l.coll.coll.Len()
		l.coll.Subscribe(l)
	}
	return true
}

func (l *LengthObserver) Unsubscribe(s Subscriber) bool {
	if !l.subs.Remove(s) {
		return false
	}

	if l.subs.Len() == 0 {
		l.coll.Unsubscribe(l)
	}
	return true
}

func (l *LengthObserver) addDependent(d Dependent)    { l.Subscribe(d) }
func (l *LengthObserver) removeDependent(d Dependent) { l.Unsubscribe(d) }
func (l *LengthObserver) level() int                  { return 0 }
