package domain

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Number of decimal shards a project id's rows are bucketed into. Chosen to
// match the shard-count described for the owning store's row distribution.
const shardCount = 1031

// id prefixes. Every row in the system carries one of these.
const (
	prefixProject = "prj"
	prefixTrigger = "trig"
	prefixRun     = "run"
	prefixAttempt = "att"
)

// shardOf derives the 4-digit decimal shard for a raw id using FNV-1a, the
// same hash family the store's row distribution is keyed on.
func shardOf(rawID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rawID))
	return h.Sum32() % shardCount
}

// newID builds a prefixed, sharded, lexicographically sortable id:
// <prefix>_<shard4><ulid>. shardSeed is the id whose shard this row must
// colocate with — the owning project's raw id for every row.
func newID(prefix, shardSeed string) string {
	shard := shardOf(shardSeed)
	return fmt.Sprintf("%s_%04d%s", prefix, shard, ulid.Make().String())
}

// NewProjectID mints a project id; a project's shard is derived from its own
// raw id, since it has no parent to inherit one from.
func NewProjectID() string {
	u := ulid.Make().String()
	return fmt.Sprintf("%s_%04d%s", prefixProject, shardOf(u), u)
}

// NewTriggerID mints a trigger id sharded under its owning project.
func NewTriggerID(projectID string) string { return newID(prefixTrigger, projectID) }

// NewRunID mints a run id sharded under its owning project.
func NewRunID(projectID string) string { return newID(prefixRun, projectID) }

// NewAttemptID mints an attempt id sharded under its owning project.
func NewAttemptID(projectID string) string { return newID(prefixAttempt, projectID) }

// ShardOfID extracts the 4-digit shard embedded in a prefixed id. Returns
// "" if id is not well-formed.
func ShardOfID(id string) string {
	idx := strings.IndexByte(id, '_')
	if idx < 0 || len(id) < idx+5 {
		return ""
	}
	return id[idx+1 : idx+5]
}
