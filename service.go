package journeycas

import (
	"context"
	"fmt"
	"strings"

	c "github.com/unkn0wn-root/journeycas/codec"
	"github.com/unkn0wn-root/journeycas/internal/keys"
	"github.com/unkn0wn-root/journeycas/store"
)

// Service is the journey API. Status values are free-form: any non-blank
// string is accepted and no transition rules are enforced.
type Service interface {
	// GetJourney returns (journey, true, nil) on hit; (Journey{}, false, nil) when absent.
	GetJourney(ctx context.Context, journeyID string) (Journey, bool, error)
	// ListJourneyIDs returns the index in bootstrap order; empty (not an
	// error) when no index exists.
	ListJourneyIDs(ctx context.Context) ([]string, error)

	// UpdateSegmentStatus sets one segment's status and nothing else.
	// Returns nil, ErrNotFound (journey or segment), or ErrConflict.
	UpdateSegmentStatus(ctx context.Context, journeyID, segmentID, status string) error
	// UpdateJourneyStatus sets the journey's top-level status and nothing else.
	UpdateJourneyStatus(ctx context.Context, journeyID, status string) error

	// Initialize overwrites the given journeys at version 0 and rebuilds the
	// index. Startup only: plain writes, not CAS, so running it alongside
	// live updates can lose them.
	Initialize(ctx context.Context, journeys []Journey) error

	Close(ctx context.Context) error
}

// Options tune the journey service. Only Store is required.
type Options struct {
	Store     store.Store
	Codec     c.Codec[Journey] // nil => JSON
	Namespace string           // key prefix; "" => "journey"
	Policy    Policy
	Logger    Logger // nil => NopLogger
	Hooks     Hooks  // nil => NopHooks
}

type service struct {
	ns    string
	st    store.Store
	docs  *Engine[Journey]
	index c.Codec[[]string]
	log   Logger
	hooks Hooks
}

var _ Service = (*service)(nil)

func New(opts Options) (Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("journeycas: store is required")
	}
	ns := coalesce(opts.Namespace, defaultNamespace)
	codec := coalesce[c.Codec[Journey]](opts.Codec, c.JSON[Journey]{})
	log := With(coalesce[Logger](opts.Logger, NopLogger{}), Fields{"ns": ns})

	docs, err := NewEngine(EngineOptions[Journey]{
		Store:      opts.Store,
		Codec:      codec,
		VersionKey: keys.Version,
		Policy:     opts.Policy,
		Logger:     log,
		Hooks:      opts.Hooks,
	})
	if err != nil {
		return nil, err
	}
	return &service{
		ns:    ns,
		st:    opts.Store,
		docs:  docs,
		index: c.JSON[[]string]{},
		log:   log,
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

func (s *service) GetJourney(ctx context.Context, journeyID string) (Journey, bool, error) {
	if err := checkID("journeyId", journeyID); err != nil {
		return Journey{}, false, err
	}
	return s.docs.Get(ctx, keys.Doc(s.ns, journeyID))
}

func (s *service) ListJourneyIDs(ctx context.Context) ([]string, error) {
	raw, ok, err := s.st.Get(ctx, keys.Index(s.ns))
	if err != nil {
		s.hooks.StoreError("get", keys.Index(s.ns), err)
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	ids, err := s.index.Decode(raw)
	if err != nil {
		// best-effort entry; a broken index reads as empty
		s.log.Warn("journey index decode failed", Fields{"key": keys.Index(s.ns), "err": err})
		return []string{}, nil
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *service) UpdateSegmentStatus(ctx context.Context, journeyID, segmentID, status string) error {
	if err := checkID("journeyId", journeyID); err != nil {
		return err
	}
	if err := checkID("segmentId", segmentID); err != nil {
		return err
	}
	if err := checkID("status", status); err != nil {
		return err
	}

	v, err := s.docs.Update(ctx, keys.Doc(s.ns, journeyID), func(j *Journey) error {
		seg, ok := j.Segment(segmentID)
		if !ok {
			return fmt.Errorf("journey %q segment %q: %w", journeyID, segmentID, ErrNotFound)
		}
		seg.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("segment status updated", Fields{"journey": journeyID, "segment": segmentID, "status": status, "version": v})
	return nil
}

func (s *service) UpdateJourneyStatus(ctx context.Context, journeyID, status string) error {
	if err := checkID("journeyId", journeyID); err != nil {
		return err
	}
	if err := checkID("status", status); err != nil {
		return err
	}

	v, err := s.docs.Update(ctx, keys.Doc(s.ns, journeyID), func(j *Journey) error {
		j.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("journey status updated", Fields{"journey": journeyID, "status": status, "version": v})
	return nil
}

func (s *service) Initialize(ctx context.Context, journeys []Journey) error {
	if len(journeys) == 0 {
		return nil
	}
	for i := range journeys {
		if err := journeys[i].validate(); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(journeys))
	seen := make(map[string]struct{}, len(journeys))
	for i, j := range journeys {
		doc := j.withDefaults()
		doc.Version = 0
		raw, err := s.docs.codec.Encode(doc)
		if err != nil {
			return &InitializeError{JourneyID: j.ID, Written: i, Err: err}
		}
		dk := keys.Doc(s.ns, j.ID)
		if err := s.st.Set(ctx, dk, raw, 0); err != nil {
			s.hooks.StoreError("set", dk, err)
			return &InitializeError{JourneyID: j.ID, Written: i, Err: err}
		}
		if err := s.st.Set(ctx, keys.Version(dk), []byte(store.FormatVersion(0)), 0); err != nil {
			s.hooks.StoreError("set", keys.Version(dk), err)
			return &InitializeError{JourneyID: j.ID, Written: i, Err: err}
		}
		if _, dup := seen[j.ID]; !dup {
			seen[j.ID] = struct{}{}
			ids = append(ids, j.ID)
		}
	}

	raw, err := s.index.Encode(ids)
	if err != nil {
		return &InitializeError{Written: len(journeys), Err: err}
	}
	if err := s.st.Set(ctx, keys.Index(s.ns), raw, 0); err != nil {
		s.hooks.StoreError("set", keys.Index(s.ns), err)
		return &InitializeError{Written: len(journeys), Err: err}
	}
	s.log.Info("journeys initialized", Fields{"count": len(journeys), "unique": len(ids)})
	return nil
}

func (s *service) Close(ctx context.Context) error {
	return s.st.Close(ctx)
}

func checkID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return store.Invalid(field, "must not be blank")
	}
	return nil
}
