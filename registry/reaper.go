package registry

import (
	"log"
	"time"
)

// ExpireFunc receives each handle the reaper evicts, along with the
// resource, so the owner can run its teardown.
type ExpireFunc func(handle uint64, kind Kind, resource interface{})

// StartReaper periodically releases handles that have not been resolved for
// at least idle and hands them to onExpire. This is an opt-in policy for
// garbage-collected callers that leak handles; nothing starts it by
// default. The returned function stops the reaper.
func (t *Table) StartReaper(idle, interval time.Duration, onExpire ExpireFunc) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.sweep(idle, onExpire)
			}
		}
	}()
	return func() { close(stop) }
}

func (t *Table) sweep(idle time.Duration, onExpire ExpireFunc) {
	cutoff := time.Now().Add(-idle)

	type victim struct {
		handle   uint64
		kind     Kind
		resource interface{}
	}
	var victims []victim

	t.mu.Lock()
	for h, e := range t.entries {
		if e.lastUsed.Before(cutoff) {
			victims = append(victims, victim{h, e.kind, e.resource})
			delete(t.entries, h)
		}
	}
	t.mu.Unlock()

	for _, v := range victims {
		log.Printf("registry: reaped idle %s handle %d", v.kind, v.handle)
		if onExpire != nil {
			onExpire(v.handle, v.kind, v.resource)
		}
	}
}
