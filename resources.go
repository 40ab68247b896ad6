package vgraph

// resourceSet owns the backend resources of one node. Each acquired
// resource registers its release function; releaseAll runs them in reverse
// acquisition order exactly once.
type resourceSet struct {
	releases []func()
	released bool
}

// add registers release for a freshly acquired resource.
func (r *resourceSet) add(release func()) {
	if r.released {
		release()
		return
	}
	r.releases = append(r.releases, release)
}

func (r *resourceSet) releaseAll() {
	if r.released {
		return
	}
	r.released = true
	for i := len(r.releases) - 1; i >= 0; i-- {
		r.releases[i]()
	}
	r.releases = nil
}
