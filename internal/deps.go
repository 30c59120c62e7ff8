package internal

// Dependency is anything a computation can read and subscribe to.
type Dependency interface {
	addDependent(d Dependent)
	removeDependent(d Dependent)

	// level is the height of the dependency in the graph; 0 for a source
	level() int
}

// Dependent is a computation re-evaluated when one of its dependencies changes.
type Dependent interface {
	Subscriber
	CollectionSubscriber
}

type depRecord struct {
	dep     Dependency
	version int
}

// DependencySet records the dependencies read by one evaluation of its owner.
// Every evaluation bumps the version; dependencies not read again are released when it ends.
type DependencySet struct {
	owner Dependent

	version int
	records []depRecord
	index   map[Dependency]int
}

func NewDependencySet(owner Dependent) *DependencySet {
	return &DependencySet{
		owner: owner,
		index: make(map[Dependency]int),
	}
}

func (d *DependencySet) begin() {
	d.version++
}

func (d *DependencySet) observe(dep Dependency) {
	if i, ok := d.index[dep]; ok {
		d.records[i].version = d.version
		return
	}

	d.index[dep] = len(d.records)
	d.records = append(d.records, depRecord{dep: dep, version: d.version})
	dep.addDependent(d.owner)
}

// end releases every dependency not read during the evaluation that just finished.
func (d *DependencySet) end() {
	kept := d.records[:0]
	for _, rec := range d.records {
		if rec.version == d.version {
			kept = append(kept, rec)
			continue
		}

		rec.dep.removeDependent(d.owner)
	}

	clear(d.records[len(kept):])
	d.records = kept

	clear(d.index)
	for i, rec := range d.records {
		d.index[rec.dep] = i
	}
}

// Clear releases every dependency.
func (d *DependencySet) Clear() {
	for _, rec := range d.records {
		rec.dep.removeDependent(d.owner)
	}

	d.records = nil
	clear(d.index)
}

// height is one more than the highest dependency read, 0 when none was.
func (d *DependencySet) height() int {
	h := 0
	for _, rec := range d.records {
		if l := rec.dep.level(); l >= h {
			h = l + 1
		}
	}
	return h
}

func (d *DependencySet) Len() int {
	return len(d.records)
}

// Has reports whether dep was read by the last evaluation.
func (d *DependencySet) Has(dep Dependency) bool {
	_, ok := d.index[dep]
	return ok
}
