package ledger

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "sync"

    "github.com/redis/go-redis/v9"
)

// ChangeMappings records which original ticket a replacement ticket stands in
// for while a change is pending payment.  Key format
// change_mapping:{newTicketID}, value {originalTicketID}:{passengerID}; both
// stable across restarts so an in-flight change survives a redeploy.
type ChangeMappings struct {
    rdb *redis.Client
}

func NewChangeMappings(rdb *redis.Client) *ChangeMappings {
    return &ChangeMappings{rdb: rdb}
}

func changeMappingKey(newTicketID int64) string {
    return fmt.Sprintf("change_mapping:%d", newTicketID)
}

func changeMappingOriginKey(originalTicketID int64) string {
    return fmt.Sprintf("change_mapping_orig:%d", originalTicketID)
}

// Set records the pairing new ticket → original ticket, plus a reverse
// entry keyed by the original so "is a change already in flight for this
// ticket" is answerable.
func (m *ChangeMappings) Set(ctx context.Context, newTicketID, originalTicketID, passengerID int64) error {
    val := fmt.Sprintf("%d:%d", originalTicketID, passengerID)
    if err := m.rdb.Set(ctx, changeMappingKey(newTicketID), val, 0).Err(); err != nil {
        return fmt.Errorf("change mapping set %d: %w", newTicketID, err)
    }
    if err := m.rdb.Set(ctx, changeMappingOriginKey(originalTicketID), newTicketID, 0).Err(); err != nil {
        return fmt.Errorf("change mapping set %d: %w", newTicketID, err)
    }
    return nil
}

// Get resolves the pairing for a replacement ticket.  The second return is
// false when no pairing exists (the ticket is not part of a change).
func (m *ChangeMappings) Get(ctx context.Context, newTicketID int64) (originalTicketID, passengerID int64, ok bool, err error) {
    val, err := m.rdb.Get(ctx, changeMappingKey(newTicketID)).Result()
    if err == redis.Nil {
        return 0, 0, false, nil
    }
    if err != nil {
        return 0, 0, false, fmt.Errorf("change mapping get %d: %w", newTicketID, err)
    }
    parts := strings.SplitN(val, ":", 2)
    if len(parts) != 2 {
        return 0, 0, false, fmt.Errorf("change mapping get %d: malformed value %q", newTicketID, val)
    }
    orig, err := strconv.ParseInt(parts[0], 10, 64)
    if err != nil {
        return 0, 0, false, fmt.Errorf("change mapping get %d: malformed value %q", newTicketID, val)
    }
    pass, err := strconv.ParseInt(parts[1], 10, 64)
    if err != nil {
        return 0, 0, false, fmt.Errorf("change mapping get %d: malformed value %q", newTicketID, val)
    }
    return orig, pass, true, nil
}

// GetByOriginal answers whether a change is already in flight for the
// original ticket, and which replacement ticket carries it.
func (m *ChangeMappings) GetByOriginal(ctx context.Context, originalTicketID int64) (newTicketID int64, ok bool, err error) {
    val, err := m.rdb.Get(ctx, changeMappingOriginKey(originalTicketID)).Result()
    if err == redis.Nil {
        return 0, false, nil
    }
    if err != nil {
        return 0, false, fmt.Errorf("change mapping lookup %d: %w", originalTicketID, err)
    }
    id, err := strconv.ParseInt(val, 10, 64)
    if err != nil {
        return 0, false, fmt.Errorf("change mapping lookup %d: malformed value %q", originalTicketID, val)
    }
    return id, true, nil
}

// Delete removes the pairing, and its reverse entry, once the change has
// been converted or abandoned.
func (m *ChangeMappings) Delete(ctx context.Context, newTicketID int64) error {
    origID, _, ok, err := m.Get(ctx, newTicketID)
    if err != nil {
        return err
    }
    if ok {
        if err := m.rdb.Del(ctx, changeMappingOriginKey(origID)).Err(); err != nil {
            return fmt.Errorf("change mapping delete %d: %w", newTicketID, err)
        }
    }
    if err := m.rdb.Del(ctx, changeMappingKey(newTicketID)).Err(); err != nil {
        return fmt.Errorf("change mapping delete %d: %w", newTicketID, err)
    }
    return nil
}

type changePair struct {
    originalTicketID int64
    passengerID      int64
}

// MemoryChangeMappings is a process-local stand-in for ChangeMappings used
// when no Redis is configured.  Pairings do not survive a restart, so a
// single-node deployment that crashes mid-change leaves the replacement
// order payable but never converts the originals.
type MemoryChangeMappings struct {
    mu         sync.Mutex
    pairs      map[int64]changePair
    byOriginal map[int64]int64
}

func NewMemoryChangeMappings() *MemoryChangeMappings {
    return &MemoryChangeMappings{
        pairs:      make(map[int64]changePair),
        byOriginal: make(map[int64]int64),
    }
}

func (m *MemoryChangeMappings) Set(_ context.Context, newTicketID, originalTicketID, passengerID int64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.pairs[newTicketID] = changePair{originalTicketID: originalTicketID, passengerID: passengerID}
    m.byOriginal[originalTicketID] = newTicketID
    return nil
}

func (m *MemoryChangeMappings) Get(_ context.Context, newTicketID int64) (originalTicketID, passengerID int64, ok bool, err error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    p, ok := m.pairs[newTicketID]
    if !ok {
        return 0, 0, false, nil
    }
    return p.originalTicketID, p.passengerID, true, nil
}

func (m *MemoryChangeMappings) GetByOriginal(_ context.Context, originalTicketID int64) (newTicketID int64, ok bool, err error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.byOriginal[originalTicketID]
    return id, ok, nil
}

func (m *MemoryChangeMappings) Delete(_ context.Context, newTicketID int64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if p, ok := m.pairs[newTicketID]; ok {
        delete(m.byOriginal, p.originalTicketID)
    }
    delete(m.pairs, newTicketID)
    return nil
}
