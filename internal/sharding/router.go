package sharding

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Route maps a patient identifier to a shard index. The mapping is pure and
// stable: SHA-256 of the identifier, first four bytes interpreted big-endian,
// modulo shardCount. Records are physically stored on the shard computed at
// creation time, so the same (patientID, shardCount) pair must yield the same
// index across processes and restarts.
func Route(patientID string, shardCount int) int {
	sum := sha256.Sum256([]byte(patientID))
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(shardCount))
}

// IntegrityError reports a record whose stored shard disagrees with the
// computed shard. It is a data-integrity fault: callers must surface it and
// must never re-route around it.
type IntegrityError struct {
	PatientID string
	Expected  int
	Stored    int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("shard integrity violation for patient %s: expected shard %d, record stored on shard %d",
		e.PatientID, e.Expected, e.Stored)
}

// Validate recomputes the shard for patientID and compares it against the
// shard the record claims to live on.
func Validate(storedShard int, patientID string, shardCount int) error {
	if expected := Route(patientID, shardCount); expected != storedShard {
		return &IntegrityError{PatientID: patientID, Expected: expected, Stored: storedShard}
	}
	return nil
}

// Router binds routing to a fixed shard count for the lifetime of the
// process. Resharding is not a runtime operation: constructing a Router with
// a different count against existing data is an offline migration.
type Router struct {
	shardCount int
}

func NewRouter(shardCount int) (*Router, error) {
	if shardCount < 1 {
		return nil, fmt.Errorf("shard count must be at least 1, got %d", shardCount)
	}
	return &Router{shardCount: shardCount}, nil
}

func (r *Router) ShardCount() int { return r.shardCount }

func (r *Router) Route(patientID string) int {
	return Route(patientID, r.shardCount)
}

func (r *Router) Validate(storedShard int, patientID string) error {
	return Validate(storedShard, patientID, r.shardCount)
}
