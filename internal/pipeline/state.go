package pipeline

// State is the position of one parameter run in the ingest sequence:
//
//	Idle → Fetching → (FetchFailed | Fetched) → Normalizing → Converting →
//	DeletingPrior → PublishingBands → WritingManifest → Cleanup → Done
//
// Any error after Fetched ends the run in Failed.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFetchFailed
	StateFetched
	StateNormalizing
	StateConverting
	StateDeletingPrior
	StatePublishingBands
	StateWritingManifest
	StateCleanup
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateFetching:        "fetching",
	StateFetchFailed:     "fetch_failed",
	StateFetched:         "fetched",
	StateNormalizing:     "normalizing",
	StateConverting:      "converting",
	StateDeletingPrior:   "deleting_prior",
	StatePublishingBands: "publishing_bands",
	StateWritingManifest: "writing_manifest",
	StateCleanup:         "cleanup",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFetchFailed || s == StateFailed
}
