package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// ErrBadDuration возвращается при неизвестной единице или неположительном
// количестве.
var ErrBadDuration = errors.New("некорректная длительность напоминания")

const (
	// defaultPoll — пауза между пробуждениями, когда в окне нет ни одного
	// напоминания; период перечитывания хранилища.
	defaultPoll = 24 * time.Hour
	// safetyMargin добавляется к сроку ближайшего напоминания.
	safetyMargin = time.Second
)

// ParseDuration переводит количество и единицу в длительность.
// Поддерживаются s/m/h/d/mo/y; месяц считается как 30 дней, год как 365.
func ParseDuration(amount int64, unit string) (time.Duration, error) {
	if amount <= 0 {
		return 0, ErrBadDuration
	}
	switch unit {
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	case "d":
		return time.Duration(amount) * 24 * time.Hour, nil
	case "mo":
		return time.Duration(amount) * 30 * 24 * time.Hour, nil
	case "y":
		return time.Duration(amount) * 365 * 24 * time.Hour, nil
	default:
		return 0, ErrBadDuration
	}
}

// Service держит отсортированное окно ближайших напоминаний и доставляет
// каждое ровно один раз. Авторитетный набор живёт в хранилище; окно
// перечитывается при каждом пробуждении.
type Service struct {
	log         zerolog.Logger
	repo        domain.ReminderRepo
	notifier    domain.Notifier
	horizon     time.Duration
	maxAttempts int

	mu     sync.Mutex
	window []domain.ReminderRecord

	wake chan struct{}
	now  func() time.Time
}

// NewService создаёт планировщик напоминаний.
func NewService(log zerolog.Logger, repo domain.ReminderRepo, notifier domain.Notifier, horizon time.Duration, maxAttempts int) *Service {
	if horizon <= 0 {
		horizon = defaultPoll
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		log:         log,
		repo:        repo,
		notifier:    notifier,
		horizon:     horizon,
		maxAttempts: maxAttempts,
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// CreateReminder сохраняет напоминание и будит планировщик, если срок
// попадает в текущее окно. InteractionID служит ключом дедупликации;
// пустой ключ заменяется на случайный.
func (s *Service) CreateReminder(ctx context.Context, userID, guildID string, amount int64, unit, message, interactionID string) (domain.ReminderRecord, error) {
	dur, err := ParseDuration(amount, unit)
	if err != nil {
		return domain.ReminderRecord{}, err
	}
	if interactionID == "" {
		interactionID = uuid.NewString()
	}

	rec := domain.ReminderRecord{
		InteractionID: interactionID,
		UserID:        userID,
		GuildID:       guildID,
		Message:       message,
		ExpiresAt:     s.now().UTC().Add(dur),
	}
	if err := s.repo.SaveReminder(ctx, rec); err != nil {
		return domain.ReminderRecord{}, fmt.Errorf("сохранение напоминания: %w", err)
	}

	if dur < s.horizon {
		s.track(rec)
		s.wakeUp()
	}
	return rec, nil
}

func (s *Service) track(rec domain.ReminderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, rec)
	sort.SliceStable(s.window, func(i, j int) bool {
		return s.window[i].ExpiresAt.Before(s.window[j].ExpiresAt)
	})
}

func (s *Service) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run — цикл планировщика: перечитать окно, доставить просроченные,
// заснуть до ближайшего срока или до явного пробуждения. Выходит по
// отмене контекста.
func (s *Service) Run(ctx context.Context) {
	for {
		if err := s.reload(ctx); err != nil {
			s.log.Error().Err(err).Msg("reminder: не удалось перечитать окно")
		}
		s.dispatchDue(ctx)

		interval := s.nextInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		case <-s.wake:
		}
	}
}

func (s *Service) reload(ctx context.Context) error {
	until := s.now().UTC().Add(s.horizon)
	recs, err := s.repo.ListExpiring(ctx, until)
	if err != nil {
		return err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ExpiresAt.Before(recs[j].ExpiresAt)
	})
	s.mu.Lock()
	s.window = recs
	s.mu.Unlock()
	return nil
}

// dispatchDue доставляет все просроченные напоминания. Запись удаляется из
// хранилища только после успешной доставки; неудачная попытка остаётся в
// хранилище и повторяется на следующем пробуждении, но не более
// maxAttempts раз — затем запись удаляется с предупреждением.
func (s *Service) dispatchDue(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	var due []domain.ReminderRecord
	var rest []domain.ReminderRecord
	for _, rec := range s.window {
		if rec.ExpiresAt.Before(now) {
			due = append(due, rec)
		} else {
			rest = append(rest, rec)
		}
	}
	s.window = rest
	s.mu.Unlock()

	for _, rec := range due {
		if err := s.notifier.Notify(ctx, rec); err != nil {
			metrics.ReminderDispatchErrors.Inc()
			attempts := rec.Attempts + 1
			if attempts >= s.maxAttempts {
				s.log.Warn().Err(err).
					Str("interaction", rec.InteractionID).
					Int("attempts", attempts).
					Msg("reminder: предел попыток доставки, запись удаляется")
				s.deleteRecord(ctx, rec.InteractionID)
				continue
			}
			s.log.Error().Err(err).
				Str("interaction", rec.InteractionID).
				Int("attempts", attempts).
				Msg("reminder: доставка не удалась, повторим на следующем пробуждении")
			if err := s.repo.SetReminderAttempts(ctx, rec.InteractionID, attempts); err != nil {
				s.log.Error().Err(err).Str("interaction", rec.InteractionID).Msg("reminder: не удалось сохранить счётчик попыток")
			}
			continue
		}
		metrics.RemindersDispatched.Inc()
		s.deleteRecord(ctx, rec.InteractionID)
	}
}

func (s *Service) deleteRecord(ctx context.Context, interactionID string) {
	if err := s.repo.DeleteReminder(ctx, interactionID); err != nil {
		s.log.Error().Err(err).Str("interaction", interactionID).Msg("reminder: не удалось удалить запись")
	}
}

func (s *Service) nextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.window) == 0 {
		return defaultPoll
	}
	d := s.window[0].ExpiresAt.Sub(s.now().UTC()) + safetyMargin
	if d < safetyMargin {
		d = safetyMargin
	}
	return d
}
