// Package matchmaking implements the queue and lobby engine (C6), the
// active-game directory (C7), and the coordinator event loop (C8) that
// composes them with the server registry and an auth-validation
// round-trip.
package matchmaking

import (
	"net"

	"github.com/udisondev/arenamatch/internal/model"
)

const pendingValidationTimeoutSec = 5

// Queue holds admission state: players awaiting auth validation, and
// players already validated and waiting for a lobby.
type Queue struct {
	pending  map[uint64]*model.PendingValidation // keyed by playerId
	byReqID  map[uint32]uint64                   // requestId -> playerId
	entries  []*model.QueuedPlayer               // FIFO order
	byPlayer map[uint64]*model.QueuedPlayer
	nextReq  uint32
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending:  make(map[uint64]*model.PendingValidation),
		byReqID:  make(map[uint32]uint64),
		byPlayer: make(map[uint64]*model.QueuedPlayer),
	}
}

// IsKnown reports whether playerId already has a pending validation or a
// queue entry — used to make QueueRequest idempotent.
func (q *Queue) IsKnown(playerID uint64) bool {
	_, pending := q.pending[playerID]
	_, queued := q.byPlayer[playerID]
	return pending || queued
}

// BeginValidation records a PendingValidation and returns the requestId
// to stamp on the outbound ValidateTokenRequest.
func (q *Queue) BeginValidation(playerID uint64, addr *net.UDPAddr, mode, region uint8, token string) uint32 {
	q.nextReq++
	reqID := q.nextReq
	q.pending[playerID] = &model.PendingValidation{
		RequestID:    reqID,
		PlayerID:     playerID,
		PlayerAddr:   addr,
		Mode:         mode,
		Region:       region,
		SessionToken: token,
	}
	q.byReqID[reqID] = playerID
	return reqID
}

// ResolveValidation looks up and removes the PendingValidation matching
// requestId. Returns nil if none matches (already timed out, or a
// duplicate/late reply).
func (q *Queue) ResolveValidation(requestID uint32) *model.PendingValidation {
	playerID, ok := q.byReqID[requestID]
	if !ok {
		return nil
	}
	pv := q.pending[playerID]
	delete(q.byReqID, requestID)
	delete(q.pending, playerID)
	return pv
}

// Admit moves a resolved validation into the queue with its accountId.
func (q *Queue) Admit(pv *model.PendingValidation, accountID uint64) *model.QueuedPlayer {
	qp := &model.QueuedPlayer{
		PlayerID:     pv.PlayerID,
		AccountID:    accountID,
		Mode:         pv.Mode,
		Region:       pv.Region,
		SessionToken: pv.SessionToken,
		Addr:         pv.PlayerAddr,
	}
	q.entries = append(q.entries, qp)
	q.byPlayer[qp.PlayerID] = qp
	return qp
}

// Remove drops playerId from the queue (used on voluntary QueueCancel;
// lobby formation dequeues through TakeFront instead).
func (q *Queue) Remove(playerID uint64) {
	delete(q.byPlayer, playerID)
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// CancelPending drops a player's in-flight validation, if any. Returns
// true if one existed.
func (q *Queue) CancelPending(playerID uint64) bool {
	pv, ok := q.pending[playerID]
	if !ok {
		return false
	}
	delete(q.byReqID, pv.RequestID)
	delete(q.pending, playerID)
	return true
}

// Requeue re-enqueues a player at the back of the queue, resetting their
// search time, preserving no other state (per the requeue semantics).
func (q *Queue) Requeue(qp *model.QueuedPlayer) {
	qp.SearchTimeSec = 0
	q.entries = append(q.entries, qp)
	q.byPlayer[qp.PlayerID] = qp
}

// TakeFront removes and returns the first n queued players in FIFO
// order, or nil if fewer than n are queued.
func (q *Queue) TakeFront(n int) []*model.QueuedPlayer {
	if len(q.entries) < n {
		return nil
	}
	taken := make([]*model.QueuedPlayer, n)
	copy(taken, q.entries[:n])
	q.entries = q.entries[n:]
	for _, qp := range taken {
		delete(q.byPlayer, qp.PlayerID)
	}
	return taken
}

// Len returns the number of players waiting for a lobby (not counting
// those still pending validation).
func (q *Queue) Len() int {
	return len(q.entries)
}

// AdvancePending ages every pending validation by dt and returns those
// that have exceeded the auth-validation timeout, removing them.
func (q *Queue) AdvancePending(dt float64) []*model.PendingValidation {
	var expired []*model.PendingValidation
	for playerID, pv := range q.pending {
		pv.AgeSec += dt
		if pv.AgeSec >= pendingValidationTimeoutSec {
			expired = append(expired, pv)
			delete(q.pending, playerID)
			delete(q.byReqID, pv.RequestID)
		}
	}
	return expired
}

// AdvanceSearchTime ages every queued player's search time by dt.
func (q *Queue) AdvanceSearchTime(dt float64) {
	for _, qp := range q.entries {
		qp.SearchTimeSec += dt
	}
}
