package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type occurrenceReader interface {
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type occurrenceEnrollmentLister interface {
	ListForOccurrence(ctx context.Context, classID, occurrenceID string) ([]models.EnrollmentDetail, error)
}

type releaseCoverageLister interface {
	ListActiveCovering(ctx context.Context, classID string, date time.Time) ([]models.SlotRelease, error)
}

type justifiedMarkLister interface {
	ListJustifiedStudents(ctx context.Context, classID string, date time.Time) ([]string, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AvailabilityInput is the snapshot of rows the seat accounting runs on.
type AvailabilityInput struct {
	Class             *models.Class
	Occurrence        *models.Occurrence
	Enrollments       []models.EnrollmentDetail
	Releases          []models.SlotRelease
	JustifiedStudents []string
	OfferedHint       *int
}

// ResolveAvailability computes seat occupancy for one occurrence from an
// immutable snapshot. An enrollment counts only when it applies to this
// occurrence; a seat is freed at most once per student, whether by an
// active release covering the date, a justified-absence mark, or both.
// The offered count never exceeds the real count regardless of the hint.
// Missing occurrence or class degrades to zero seats, never an error.
func ResolveAvailability(in AvailabilityInput) models.OccurrenceAvailability {
	var out models.OccurrenceAvailability
	if in.Occurrence != nil {
		out.OccurrenceID = in.Occurrence.ID
		out.ClassID = in.Occurrence.ClassID
		out.Date = in.Occurrence.Date
	}
	if in.Occurrence == nil || in.Class == nil {
		return out
	}
	out.Capacity = in.Class.Capacity()

	valid := make([]models.EnrollmentDetail, 0, len(in.Enrollments))
	validStudents := make(map[string]bool, len(in.Enrollments))
	for _, enrollment := range in.Enrollments {
		if !enrollment.AppliesTo(in.Occurrence.ID) {
			continue
		}
		valid = append(valid, enrollment)
		validStudents[enrollment.StudentID] = true
	}

	freed := make(map[string]bool)
	for i := range in.Releases {
		release := &in.Releases[i]
		if release.Status != models.ReleaseStatusActive || !release.Covers(in.Occurrence.Date) {
			continue
		}
		if validStudents[release.StudentID] {
			freed[release.StudentID] = true
		}
	}
	for _, studentID := range in.JustifiedStudents {
		if validStudents[studentID] {
			freed[studentID] = true
		}
	}

	occupied := len(valid) - len(freed)
	if occupied < 0 {
		occupied = 0
	}
	out.OccupiedSeats = occupied

	free := out.Capacity - occupied
	if free < 0 {
		free = 0
	}
	out.FreeSeatsReal = free
	out.FreeSeatsOffered = free
	if in.OfferedHint != nil && *in.OfferedHint >= 0 && *in.OfferedHint < free {
		out.FreeSeatsOffered = *in.OfferedHint
	}

	for _, enrollment := range valid {
		if freed[enrollment.StudentID] {
			continue
		}
		out.Seats = append(out.Seats, models.SeatOccupant{
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			StudentName:  enrollment.StudentName,
			Assignment:   enrollment.AssignmentType,
			MakeupFill:   enrollment.MakeupFill,
		})
	}
	return out
}

// CapacityService derives seat availability for occurrences. Every call
// re-derives from freshly fetched rows; the store is the single source of
// truth and the optional Redis cache holds only short-lived copies that
// seat-affecting writes invalidate.
type CapacityService struct {
	occurrences occurrenceReader
	classes     classReader
	enrollments occurrenceEnrollmentLister
	releases    releaseCoverageLister
	attendance  justifiedMarkLister
	cache       availabilityCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewCapacityService constructs CapacityService. A nil cache disables
// caching entirely.
func NewCapacityService(occurrences occurrenceReader, classes classReader, enrollments occurrenceEnrollmentLister, releases releaseCoverageLister, attendance justifiedMarkLister, cache availabilityCache, cacheTTL time.Duration, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &CapacityService{occurrences: occurrences, classes: classes, enrollments: enrollments, releases: releases, attendance: attendance, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func availabilityCacheKey(classID, occurrenceID string) string {
	return fmt.Sprintf("availability:%s:%s", classID, occurrenceID)
}

// Availability computes seat availability for an occurrence. The hint, if
// non-nil and non-negative, caps the offered count; it never raises it.
// A missing occurrence or class yields a zero-seat result, not an error.
func (s *CapacityService) Availability(ctx context.Context, occurrenceID string, hint *int) (*models.OccurrenceAvailability, error) {
	occurrence, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Debug("availability for unknown occurrence", zap.String("occurrence_id", occurrenceID))
			return &models.OccurrenceAvailability{OccurrenceID: occurrenceID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}

	key := availabilityCacheKey(occurrence.ClassID, occurrenceID)
	if s.cache != nil {
		var cached models.OccurrenceAvailability
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return applyOfferedHint(&cached, hint), nil
		}
	}

	class, err := s.classes.FindByID(ctx, occurrence.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.OccurrenceAvailability{OccurrenceID: occurrenceID, ClassID: occurrence.ClassID, Date: occurrence.Date}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	enrollments, err := s.enrollments.ListForOccurrence(ctx, occurrence.ClassID, occurrenceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	releases, err := s.releases.ListActiveCovering(ctx, occurrence.ClassID, occurrence.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load releases")
	}
	justified, err := s.attendance.ListJustifiedStudents(ctx, occurrence.ClassID, occurrence.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance marks")
	}

	availability := ResolveAvailability(AvailabilityInput{
		Class:             class,
		Occurrence:        occurrence,
		Enrollments:       enrollments,
		Releases:          releases,
		JustifiedStudents: justified,
	})
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, availability, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return applyOfferedHint(&availability, hint), nil
}

// Invalidate drops every cached availability payload of a class. Called
// after any write that changes seat accounting.
func (s *CapacityService) Invalidate(ctx context.Context, classID string) {
	if s.cache == nil || classID == "" {
		return
	}
	pattern := fmt.Sprintf("availability:%s:*", classID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("class_id", classID), zap.Error(err))
	}
}

func applyOfferedHint(availability *models.OccurrenceAvailability, hint *int) *models.OccurrenceAvailability {
	availability.FreeSeatsOffered = availability.FreeSeatsReal
	if hint != nil && *hint >= 0 && *hint < availability.FreeSeatsReal {
		availability.FreeSeatsOffered = *hint
	}
	return availability
}
