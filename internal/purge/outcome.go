package purge

// Batch is the set of messages collected for one channel
type Batch struct {
	ToDelete     []Message
	Skipped      int
	LimitReached bool
}

// IDs returns the message IDs in batch order
func (b Batch) IDs() []string {
	ids := make([]string, len(b.ToDelete))
	for i, m := range b.ToDelete {
		ids[i] = m.ID
	}
	return ids
}

// Status summarises what happened in one channel
type Status int

const (
	// StatusNoMatches means nothing in the scanned history matched
	StatusNoMatches Status = iota
	// StatusNothingEligible means matches existed only past the age cutoff
	StatusNothingEligible
	// StatusDeleted means a batch was submitted and accepted
	StatusDeleted
	// StatusFailed means the scan or the delete returned an error
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNoMatches:
		return "no_matches"
	case StatusNothingEligible:
		return "nothing_eligible"
	case StatusDeleted:
		return "deleted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChannelResult is one channel's contribution to an Outcome
type ChannelResult struct {
	ChannelID string
	// Matched is the number of eligible messages submitted for deletion
	Matched int
	Deleted int
	// Skipped counts matching messages passed over for being older than the cutoff
	Skipped int
	// LimitReached is set when the scan stopped because the batch filled up
	LimitReached bool
	Err          error
}

// Status classifies the result
func (r ChannelResult) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Matched > 0:
		return StatusDeleted
	case r.Skipped > 0:
		return StatusNothingEligible
	default:
		return StatusNoMatches
	}
}

// Affected reports whether the channel's batch was non-empty and deleted
func (r ChannelResult) Affected() bool {
	return r.Err == nil && r.Matched > 0
}

// Outcome aggregates a purge over every channel in scope
type Outcome struct {
	Deleted          int
	Skipped          int
	ChannelsAffected int
	// LimitedChannels counts channels whose scan stopped at the per-channel limit
	LimitedChannels int
	Errors          map[string]error
	Channels        []ChannelResult
}

// NothingEligible reports a run that found old matches but nothing deletable
func (o Outcome) NothingEligible() bool {
	return o.Deleted == 0 && o.ChannelsAffected == 0 && o.Skipped > 0 && len(o.Errors) == 0
}

func aggregate(results []ChannelResult) Outcome {
	out := Outcome{
		Errors:   make(map[string]error),
		Channels: results,
	}
	for _, r := range results {
		if r.Err != nil {
			// A failed channel contributes its error and what it skipped, no deletions
			out.Errors[r.ChannelID] = r.Err
			out.Skipped += r.Skipped
			continue
		}
		out.Deleted += r.Deleted
		out.Skipped += r.Skipped
		if r.Affected() {
			out.ChannelsAffected++
		}
		if r.LimitReached {
			out.LimitedChannels++
		}
	}
	return out
}
