package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core/badge"
)

type badgeRepository struct {
	db *DB
}

var _ badge.Repository = (*badgeRepository)(nil)

func NewBadgeRepository(db *DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (repo *badgeRepository) checkNameUniqueness(name string, excludedIDs ...string) error {
	for _, b := range repo.db.badges {
		if strings.EqualFold(b.Name, name) && !isExcluded(b.ID, excludedIDs) {
			return badge.ErrNameExists
		}
	}
	return nil
}

func (repo *badgeRepository) CheckNameUniqueness(_ context.Context, name string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkNameUniqueness(name, excludedIDs...)
}

func (repo *badgeRepository) CreateBadge(_ context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkNameUniqueness(b.Name); err != nil {
		return badge.Badge{}, err
	}
	b.ID = newID()
	repo.db.badges[b.ID] = &b
	return b, nil
}

func (repo *badgeRepository) QueryBadges(_ context.Context) ([]badge.Badge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	badges := make([]badge.Badge, 0, len(repo.db.badges))
	for _, b := range repo.db.badges {
		badges = append(badges, *b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Name < badges[j].Name })
	return badges, nil
}

func (repo *badgeRepository) GetBadge(_ context.Context, id string) (badge.Badge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.badges[id]; ok {
		return *b, nil
	}
	return badge.Badge{}, badge.ErrNotFound
}

func (repo *badgeRepository) UpdateBadge(_ context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.badges[b.ID]
	if !ok {
		return badge.Badge{}, badge.ErrNotFound
	}
	if err := repo.checkNameUniqueness(b.Name, b.ID); err != nil {
		return badge.Badge{}, err
	}
	b.CreatedAt = orig.CreatedAt
	repo.db.badges[b.ID] = &b
	return b, nil
}

func (repo *badgeRepository) DeleteBadge(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.badges[id]; !ok {
		return badge.ErrNotFound
	}
	for k := range repo.db.studentBadges {
		if k.b == id {
			delete(repo.db.studentBadges, k)
		}
	}
	delete(repo.db.badges, id)
	return nil
}

func (repo *badgeRepository) AwardBadge(_ context.Context, sb badge.StudentBadge) (badge.StudentBadge, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b, ok := repo.db.badges[sb.BadgeID]
	if !ok {
		return badge.StudentBadge{}, badge.ErrNotFound
	}
	key := pairKey{sb.StudentID, sb.BadgeID}
	if _, ok := repo.db.studentBadges[key]; ok {
		return badge.StudentBadge{}, badge.ErrAlreadyAwarded
	}
	sb.ID = newID()
	sb.Badge = nil
	repo.db.studentBadges[key] = &sb

	bcopy := *b
	sb.Badge = &bcopy
	return sb, nil
}

func (repo *badgeRepository) RevokeBadge(_ context.Context, studentID, badgeID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := pairKey{studentID, badgeID}
	if _, ok := repo.db.studentBadges[key]; !ok {
		return badge.ErrAwardNotFound
	}
	delete(repo.db.studentBadges, key)
	return nil
}

func (repo *badgeRepository) QueryStudentBadges(_ context.Context, studentID string) ([]badge.StudentBadge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sbs := make([]badge.StudentBadge, 0)
	for k, sb := range repo.db.studentBadges {
		if k.a != studentID {
			continue
		}
		s := *sb
		if b, ok := repo.db.badges[k.b]; ok {
			bcopy := *b
			s.Badge = &bcopy
		}
		sbs = append(sbs, s)
	}
	sort.Slice(sbs, func(i, j int) bool { return sbs[i].AwardedAt.After(sbs[j].AwardedAt) })
	return sbs, nil
}
