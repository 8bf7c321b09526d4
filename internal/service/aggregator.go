package service

import (
	"context"
	"sort"
	"time"

	"rydz/internal/domain"
	"rydz/internal/repository"
	"rydz/internal/store"
)

// DisplayCache caches resolved display identities. Implemented by the redis
// cache store; a nil cache is fine, every lookup then hits the profile store.
type DisplayCache interface {
	GetDisplayName(ctx context.Context, userID string) (string, bool)
	SetDisplayName(ctx context.Context, userID, name string)
}

// AggregatorService computes the derived read views: next ryd, conversation
// list, upcoming schedule. Reads are not transactional; results are
// eventually consistent snapshots assembled from independent queries.
type AggregatorService struct {
	rydz     repository.RydRepository
	profiles repository.ProfileRepository
	events   repository.EventRepository
	cache    DisplayCache
}

// NewAggregatorService creates a new AggregatorService.
func NewAggregatorService(
	rydz repository.RydRepository,
	profiles repository.ProfileRepository,
	events repository.EventRepository,
	cache DisplayCache,
) *AggregatorService {
	return &AggregatorService{
		rydz:     rydz,
		profiles: profiles,
		events:   events,
		cache:    cache,
	}
}

// NextRyd is the dashboard's single chronologically-next ride for a user.
type NextRyd struct {
	Ryd *domain.ActiveRyd
	// Driving is true when the user is behind the wheel rather than (or as
	// well as) riding.
	Driving bool
	// PassengerID names whose seat put this ryd on the dashboard when the
	// user rides or manages the rider; empty when driving.
	PassengerID string
}

// GetNextRyd returns the chronologically next non-terminal ryd the user
// drives or rides on (directly or via a managed student). Driving wins ties.
// Returns nil without error when there is none.
func (s *AggregatorService) GetNextRyd(ctx context.Context, userID string) (*NextRyd, error) {
	keys, err := s.queryKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	driving, err := s.rydz.ByDriver(ctx, userID)
	if err != nil {
		return nil, wrap(err, "query driven rydz")
	}
	var best *NextRyd
	for _, ryd := range driving {
		if !upcoming(ryd, now) {
			continue
		}
		best = better(best, &NextRyd{Ryd: ryd, Driving: true})
	}

	for _, key := range keys {
		riding, err := s.rydz.ByPassenger(ctx, key)
		if err != nil {
			return nil, wrap(err, "query ridden rydz")
		}
		for _, ryd := range riding {
			// Rydz the user drives for their own child are already
			// counted on the driving side.
			if ryd.DriverID == userID {
				continue
			}
			if !upcoming(ryd, now) {
				continue
			}
			best = better(best, &NextRyd{Ryd: ryd, PassengerID: key})
		}
	}
	return best, nil
}

// better keeps the chronologically earlier candidate; on equal arrival times
// the driving role wins.
func better(current, candidate *NextRyd) *NextRyd {
	if current == nil {
		return candidate
	}
	a, b := current.Ryd.PlannedArrivalTime, candidate.Ryd.PlannedArrivalTime
	switch {
	case b.Before(a):
		return candidate
	case a.Before(b):
		return current
	case candidate.Driving && !current.Driving:
		return candidate
	}
	return current
}

func upcoming(ryd *domain.ActiveRyd, now time.Time) bool {
	return !ryd.Status.IsTerminal() && !ryd.PlannedArrivalTime.Before(now)
}

// Participant is a resolved display identity.
type Participant struct {
	UserID string
	Name   string
}

// Conversation is one entry of the conversation list: a ryd the user
// participates in, with the other participants and the latest message.
type Conversation struct {
	RydID        string
	Status       domain.RydStatus
	Participants []Participant
	LastMessage  *domain.Message
}

// GetConversations lists the user's ryd conversations, split into active and
// archived by ryd status, newest message first; conversations without
// messages sort last.
func (s *AggregatorService) GetConversations(ctx context.Context, userID string, archived bool) ([]Conversation, error) {
	rydz, err := s.participatingRydz(ctx, userID)
	if err != nil {
		return nil, err
	}

	var conversations []Conversation
	for _, ryd := range rydz {
		if ryd.Status.IsTerminal() != archived {
			continue
		}
		participants, err := s.otherParticipants(ctx, ryd, userID)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, Conversation{
			RydID:        ryd.ID,
			Status:       ryd.Status,
			Participants: participants,
			LastMessage:  ryd.LatestMessage(),
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessage, conversations[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.SentAt.After(b.SentAt)
	})
	return conversations, nil
}

// ScheduleItem is one ryd or event occurrence on the upcoming schedule.
type ScheduleItem struct {
	Time    time.Time
	Title   string
	RydID   string // set for ryd items
	EventID string // set for event items
	Driving bool
}

// ScheduleDay buckets one day's schedule items in chronological order.
type ScheduleDay struct {
	Date  string // YYYY-MM-DD, UTC
	Items []ScheduleItem
}

// DefaultScheduleHorizonDays is how far ahead GetUpcomingSchedule looks when
// the caller does not say.
const DefaultScheduleHorizonDays = 14

// GetUpcomingSchedule merges the user's rydz and the events within the
// horizon into day-bucketed, chronologically ordered items.
func (s *AggregatorService) GetUpcomingSchedule(ctx context.Context, userID string, horizonDays int) ([]ScheduleDay, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultScheduleHorizonDays
	}
	now := time.Now().UTC()
	until := now.AddDate(0, 0, horizonDays)

	var items []ScheduleItem

	rydz, err := s.participatingRydz(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ryd := range rydz {
		if ryd.Status.IsTerminal() {
			continue
		}
		at := ryd.PlannedArrivalTime
		if at.Before(now) || !at.Before(until) {
			continue
		}
		title := ryd.Destination
		if title == "" {
			title = "Ryd"
		}
		items = append(items, ScheduleItem{
			Time:    at,
			Title:   title,
			RydID:   ryd.ID,
			Driving: ryd.DriverID == userID,
		})
	}

	events, err := s.events.Between(ctx, now, until)
	if err != nil {
		return nil, wrap(err, "query events")
	}
	for _, event := range events {
		if event.Status == domain.EventStatusStale {
			continue
		}
		items = append(items, ScheduleItem{
			Time:    event.StartTime,
			Title:   event.Name,
			EventID: event.ID,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time.Before(items[j].Time)
	})

	var days []ScheduleDay
	for _, item := range items {
		date := item.Time.UTC().Format("2006-01-02")
		if len(days) == 0 || days[len(days)-1].Date != date {
			days = append(days, ScheduleDay{Date: date})
		}
		last := &days[len(days)-1]
		last.Items = append(last.Items, item)
	}
	return days, nil
}

// queryKeys expands a user to the set of manifest keys that may represent
// them: themself plus any managed students.
func (s *AggregatorService) queryKeys(ctx context.Context, userID string) ([]string, error) {
	keys := []string{userID}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return keys, nil
		}
		return nil, wrap(err, "load profile")
	}
	keys = append(keys, profile.ManagedStudentIDs...)
	return keys, nil
}

// participatingRydz unions the rydz the user drives with the rydz any of
// their query keys rides on, deduplicated by ryd ID.
func (s *AggregatorService) participatingRydz(ctx context.Context, userID string) ([]*domain.ActiveRyd, error) {
	keys, err := s.queryKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []*domain.ActiveRyd

	driving, err := s.rydz.ByDriver(ctx, userID)
	if err != nil {
		return nil, wrap(err, "query driven rydz")
	}
	for _, ryd := range driving {
		if !seen[ryd.ID] {
			seen[ryd.ID] = true
			result = append(result, ryd)
		}
	}

	for _, key := range keys {
		riding, err := s.rydz.ByPassenger(ctx, key)
		if err != nil {
			return nil, wrap(err, "query ridden rydz")
		}
		for _, ryd := range riding {
			if !seen[ryd.ID] {
				seen[ryd.ID] = true
				result = append(result, ryd)
			}
		}
	}
	return result, nil
}

// otherParticipants resolves display identities for everyone on the ryd
// except the viewer, consulting the display cache first.
func (s *AggregatorService) otherParticipants(ctx context.Context, ryd *domain.ActiveRyd, viewerID string) ([]Participant, error) {
	var ids []string
	if ryd.DriverID != "" && ryd.DriverID != viewerID {
		ids = append(ids, ryd.DriverID)
	}
	for i := range ryd.PassengerManifest {
		entry := &ryd.PassengerManifest[i]
		if entry.Occupies() && entry.UserID != viewerID {
			ids = append(ids, entry.UserID)
		}
	}

	participants := make([]Participant, 0, len(ids))
	var misses []string
	for _, id := range ids {
		if s.cache != nil {
			if name, ok := s.cache.GetDisplayName(ctx, id); ok {
				participants = append(participants, Participant{UserID: id, Name: name})
				continue
			}
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		profiles, err := s.profiles.GetMany(ctx, misses)
		if err != nil {
			return nil, wrap(err, "resolve participants")
		}
		for _, id := range misses {
			name := id
			if p, ok := profiles[id]; ok {
				name = p.Name
			}
			participants = append(participants, Participant{UserID: id, Name: name})
			if s.cache != nil {
				s.cache.SetDisplayName(ctx, id, name)
			}
		}
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserID < participants[j].UserID
	})
	return participants, nil
}
