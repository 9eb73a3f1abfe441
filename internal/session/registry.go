// Package session keeps the live retargeting sessions: one animator per
// tracked subject, backed by the store and fanned out to sinks and
// subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/retarget/internal/animator"
	"github.com/ayusman/retarget/internal/config"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/rig"
	"github.com/ayusman/retarget/internal/sink"
	"github.com/ayusman/retarget/internal/store"
)

// ErrNotFound is returned for unknown sessions and rigs.
var ErrNotFound = errors.New("session not found")

// Live is a session with its running animator.
type Live struct {
	Session  store.Session
	Rig      store.Rig
	Animator *animator.Animator
	Bones    rig.BoneMap
	hub      *hub
	// seqBase continues the frame sequence of a revived session.
	seqBase int64
}

// Subscribe returns a channel receiving every result solved for the session
// and a function that cancels the subscription.
func (l *Live) Subscribe() (<-chan animator.Result, func()) {
	return l.hub.subscribe()
}

// Subscribers returns the number of active subscriptions.
func (l *Live) Subscribers() int {
	return l.hub.len()
}

// Options configures a Registry.
type Options struct {
	Store *store.Store
	// Retarget holds the base solver options; rig profiles override them.
	Retarget config.Retarget
	// Sinks receives every solved frame. Nil disables forwarding.
	Sinks *sink.Manager
	// RecordFrames stores every solved frame.
	RecordFrames bool
}

// Registry owns the live sessions.
type Registry struct {
	opts Options
	mu   sync.Mutex
	live map[string]*Live
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts: opts,
		live: make(map[string]*Live),
	}
}

// Build creates an animator for a rig profile.
func Build(r *store.Rig, base config.Retarget, s *store.Session) (*animator.Animator, rig.BoneMap, error) {
	opts, err := base.Merge(r.Config)
	if err != nil {
		return nil, rig.BoneMap{}, fmt.Errorf("rig %s options: %w", r.Name, err)
	}
	if s != nil {
		opts.UseFlip = s.Flip
		opts.RootMotion = s.RootMotion
	}

	layout, err := rig.LayoutByName(r.Layout)
	if err != nil {
		return nil, rig.BoneMap{}, err
	}
	h, err := rig.NewHumanoid(layout)
	if err != nil {
		return nil, rig.BoneMap{}, err
	}
	a, err := animator.New(h, opts.Config())
	if err != nil {
		return nil, rig.BoneMap{}, err
	}

	bones := rig.CanonicalBoneMap()
	if len(r.BoneMap) > 0 {
		bones, err = rig.NewBoneMap(r.BoneMap)
		if err != nil {
			return nil, rig.BoneMap{}, fmt.Errorf("rig %s: %w", r.Name, err)
		}
	}
	return a, bones, nil
}

// Create starts a new session for a stored rig.
func (r *Registry) Create(rigID string, flip, rootMotion bool) (*Live, error) {
	rg, err := r.opts.Store.Rigs().GetByID(rigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("rig %s: %w", rigID, ErrNotFound)
		}
		return nil, err
	}

	s := &store.Session{ID: uuid.New().String(), RigID: rg.ID, Flip: flip, RootMotion: rootMotion}
	a, bones, err := Build(rg, r.opts.Retarget, s)
	if err != nil {
		return nil, err
	}
	if err := r.opts.Store.Sessions().Create(s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	l := &Live{Session: *s, Rig: *rg, Animator: a, Bones: bones, hub: newHub()}
	r.mu.Lock()
	r.live[s.ID] = l
	r.mu.Unlock()

	log.Printf("Session %s started for rig %s", s.ID, rg.Name)
	return l, nil
}

// Get returns a live session, reviving stored sessions on first use.
func (r *Registry) Get(id string) (*Live, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.live[id]; ok {
		return l, nil
	}

	s, err := r.opts.Store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rg, err := r.opts.Store.Rigs().GetByID(s.RigID)
	if err != nil {
		return nil, fmt.Errorf("session %s rig: %w", id, err)
	}
	a, bones, err := Build(rg, r.opts.Retarget, s)
	if err != nil {
		return nil, err
	}

	l := &Live{Session: *s, Rig: *rg, Animator: a, Bones: bones, hub: newHub()}
	if last, err := r.opts.Store.Frames().Latest(id); err == nil {
		l.seqBase = last.Sequence
	}
	r.live[id] = l
	return l, nil
}

// Delete stops a session and removes it with its frames.
func (r *Registry) Delete(id string) error {
	if err := r.opts.Store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	r.mu.Lock()
	l, ok := r.live[id]
	delete(r.live, id)
	r.mu.Unlock()

	if ok {
		l.hub.close()
	}
	return nil
}

// SetToggles updates a session's flip and root motion and stores them.
func (r *Registry) SetToggles(id string, flip, rootMotion bool) (store.Session, error) {
	l, err := r.Get(id)
	if err != nil {
		return store.Session{}, err
	}

	l.Animator.SetFlip(flip)
	l.Animator.SetRootMotion(rootMotion)

	r.mu.Lock()
	l.Session.Flip = flip
	l.Session.RootMotion = rootMotion
	s := l.Session
	r.mu.Unlock()

	if err := r.opts.Store.Sessions().Update(&s); err != nil {
		return store.Session{}, fmt.Errorf("update session: %w", err)
	}
	return s, nil
}

// Push solves one frame for a session, then records it, forwards it to the
// sinks and publishes it to subscribers. Sink failures are logged.
func (r *Registry) Push(ctx context.Context, id string, f pose.Frame) (animator.Result, error) {
	l, err := r.Get(id)
	if err != nil {
		return animator.Result{}, err
	}

	res, err := l.Animator.Update(f)
	if err != nil {
		return animator.Result{}, err
	}
	res.Sequence += l.seqBase

	if r.opts.RecordFrames {
		frame := &store.Frame{
			SessionID: id,
			Sequence:  res.Sequence,
			Rotations: res.Rotations,
			Joints:    res.Joints,
			Root:      res.Root,
		}
		if err := r.opts.Store.Frames().Create(frame); err != nil {
			log.Printf("Error recording frame %d of session %s: %v", res.Sequence, id, err)
		}
	}

	if r.opts.Sinks != nil {
		if err := r.opts.Sinks.Send(ctx, id, res.Sequence, res.Rotations, res.Root); err != nil {
			log.Printf("Error forwarding frame %d: %v", res.Sequence, err)
		}
	}

	l.hub.publish(res)
	return res, nil
}

// Close stops every live session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.live {
		l.hub.close()
		delete(r.live, id)
	}
}
