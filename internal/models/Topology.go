package models

// Topology is the resolved, fixed set of monitored and destination feeds.
type Topology struct {
	Sources      []FeedID
	Destinations []FeedID
	sourceSet    map[FeedID]struct{}
}

func NewTopology(sources, destinations []FeedID) *Topology {
	t := &Topology{
		Sources:      append([]FeedID(nil), sources...),
		Destinations: append([]FeedID(nil), destinations...),
		sourceSet:    make(map[FeedID]struct{}, len(sources)),
	}
	for _, s := range sources {
		t.sourceSet[s] = struct{}{}
	}
	return t
}

func (t *Topology) IsSource(feed FeedID) bool {
	_, ok := t.sourceSet[feed]
	return ok
}
