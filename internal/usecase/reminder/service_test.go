package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
)

type stubReminderRepo struct {
	saved    []domain.ReminderRecord
	saveErr  error
	deleted  []string
	attempts map[string]int
	expiring []domain.ReminderRecord
}

func (s *stubReminderRepo) SaveReminder(_ context.Context, rec domain.ReminderRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *stubReminderRepo) DeleteReminder(_ context.Context, interactionID string) error {
	s.deleted = append(s.deleted, interactionID)
	return nil
}

func (s *stubReminderRepo) SetReminderAttempts(_ context.Context, interactionID string, attempts int) error {
	if s.attempts == nil {
		s.attempts = map[string]int{}
	}
	s.attempts[interactionID] = attempts
	return nil
}

func (s *stubReminderRepo) ListExpiring(context.Context, time.Time) ([]domain.ReminderRecord, error) {
	return s.expiring, nil
}

type stubNotifier struct {
	notified  []domain.ReminderRecord
	notifyErr error
}

func (s *stubNotifier) Notify(_ context.Context, rec domain.ReminderRecord) error {
	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notified = append(s.notified, rec)
	return nil
}

func (s *stubNotifier) PostDigest(context.Context, string, domain.DigestCandidate) error { return nil }
func (s *stubNotifier) SendText(context.Context, string, string) error                  { return nil }

func newTestScheduler(repo *stubReminderRepo, notifier *stubNotifier, at time.Time) *Service {
	s := NewService(zerolog.Nop(), repo, notifier, 24*time.Hour, 5)
	s.now = func() time.Time { return at }
	return s
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"s":  10 * time.Second,
		"m":  10 * time.Minute,
		"h":  10 * time.Hour,
		"d":  10 * 24 * time.Hour,
		"mo": 10 * 30 * 24 * time.Hour,
		"y":  10 * 365 * 24 * time.Hour,
	}
	for unit, expected := range cases {
		got, err := ParseDuration(10, unit)
		if err != nil {
			t.Fatalf("не ожидали ошибку для %s: %v", unit, err)
		}
		if got != expected {
			t.Fatalf("для %s ожидали %v, получили %v", unit, expected, got)
		}
	}

	if _, err := ParseDuration(10, "week"); !errors.Is(err, ErrBadDuration) {
		t.Fatalf("ожидали ErrBadDuration для неизвестной единицы")
	}
	if _, err := ParseDuration(0, "s"); !errors.Is(err, ErrBadDuration) {
		t.Fatalf("ожидали ErrBadDuration для нулевого количества")
	}
	if _, err := ParseDuration(-5, "m"); !errors.Is(err, ErrBadDuration) {
		t.Fatalf("ожидали ErrBadDuration для отрицательного количества")
	}
}

func TestCreateReminderTracksNearWindow(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	s := newTestScheduler(repo, &stubNotifier{}, now)

	rec, err := s.CreateReminder(context.Background(), "u1", "g1", 30, "m", "выпить чай", "i1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !rec.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("ожидали срок через 30 минут, получили %v", rec.ExpiresAt)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("запись должна сохраниться в хранилище")
	}
	if len(s.window) != 1 {
		t.Fatalf("срок внутри горизонта должен попасть в окно")
	}
	select {
	case <-s.wake:
	default:
		t.Fatalf("создание близкого напоминания должно будить планировщик")
	}
}

func TestCreateReminderFarStaysOutOfWindow(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	s := newTestScheduler(repo, &stubNotifier{}, now)

	if _, err := s.CreateReminder(context.Background(), "u1", "g1", 3, "d", "далёкое", "i1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("запись должна сохраниться в хранилище")
	}
	if len(s.window) != 0 {
		t.Fatalf("срок за горизонтом не должен попадать в окно")
	}
	select {
	case <-s.wake:
		t.Fatalf("далёкое напоминание не должно будить планировщик")
	default:
	}
}

func TestCreateReminderGeneratesInteractionID(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	s := newTestScheduler(repo, &stubNotifier{}, now)

	rec, err := s.CreateReminder(context.Background(), "u1", "g1", 1, "h", "без ключа", "")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rec.InteractionID == "" {
		t.Fatalf("пустой ключ должен заменяться на случайный")
	}
}

func TestCreateReminderDuplicate(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{saveErr: domain.ErrReminderExists}
	s := newTestScheduler(repo, &stubNotifier{}, now)

	_, err := s.CreateReminder(context.Background(), "u1", "g1", 1, "h", "дубль", "i1")
	if !errors.Is(err, domain.ErrReminderExists) {
		t.Fatalf("ожидали ErrReminderExists, получили %v", err)
	}
	if len(s.window) != 0 {
		t.Fatalf("отклонённая запись не должна попадать в окно")
	}
}

func TestDispatchDueExactlyOnce(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	notifier := &stubNotifier{}
	s := newTestScheduler(repo, notifier, now)
	s.window = []domain.ReminderRecord{
		{InteractionID: "due", UserID: "u1", ExpiresAt: now.Add(-time.Second)},
		{InteractionID: "future", UserID: "u1", ExpiresAt: now.Add(time.Hour)},
	}

	s.dispatchDue(context.Background())
	if len(notifier.notified) != 1 || notifier.notified[0].InteractionID != "due" {
		t.Fatalf("ожидали одну доставку due, получили %v", notifier.notified)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "due" {
		t.Fatalf("после доставки запись должна удаляться: %v", repo.deleted)
	}
	if len(s.window) != 1 || s.window[0].InteractionID != "future" {
		t.Fatalf("будущее напоминание должно остаться в окне: %v", s.window)
	}

	s.dispatchDue(context.Background())
	if len(notifier.notified) != 1 {
		t.Fatalf("повторная доставка недопустима")
	}
}

func TestDispatchDueRetriesOnFailure(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	notifier := &stubNotifier{notifyErr: errors.New("DM закрыты")}
	s := newTestScheduler(repo, notifier, now)
	s.window = []domain.ReminderRecord{
		{InteractionID: "flaky", UserID: "u1", ExpiresAt: now.Add(-time.Second)},
	}

	s.dispatchDue(context.Background())
	if len(repo.deleted) != 0 {
		t.Fatalf("неудачная доставка не должна удалять запись")
	}
	if repo.attempts["flaky"] != 1 {
		t.Fatalf("ожидали счётчик попыток 1, получили %d", repo.attempts["flaky"])
	}
}

func TestDispatchDueDropsAfterMaxAttempts(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{}
	notifier := &stubNotifier{notifyErr: errors.New("DM закрыты")}
	s := newTestScheduler(repo, notifier, now)
	s.window = []domain.ReminderRecord{
		{InteractionID: "doomed", UserID: "u1", ExpiresAt: now.Add(-time.Second), Attempts: 4},
	}

	s.dispatchDue(context.Background())
	if len(repo.deleted) != 1 || repo.deleted[0] != "doomed" {
		t.Fatalf("после предела попыток запись должна удаляться: %v", repo.deleted)
	}
	if len(repo.attempts) != 0 {
		t.Fatalf("после удаления счётчик не обновляется")
	}
}

func TestNextInterval(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(&stubReminderRepo{}, &stubNotifier{}, now)

	if got := s.nextInterval(); got != 24*time.Hour {
		t.Fatalf("пустое окно спит сутки, получили %v", got)
	}

	s.window = []domain.ReminderRecord{{InteractionID: "i1", ExpiresAt: now.Add(10 * time.Minute)}}
	if got := s.nextInterval(); got != 10*time.Minute+time.Second {
		t.Fatalf("ожидали срок плюс запас, получили %v", got)
	}

	s.window = []domain.ReminderRecord{{InteractionID: "i2", ExpiresAt: now.Add(-time.Hour)}}
	if got := s.nextInterval(); got != time.Second {
		t.Fatalf("просроченный срок даёт минимальный интервал, получили %v", got)
	}
}

func TestReloadSortsWindow(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubReminderRepo{expiring: []domain.ReminderRecord{
		{InteractionID: "late", ExpiresAt: now.Add(2 * time.Hour)},
		{InteractionID: "soon", ExpiresAt: now.Add(10 * time.Minute)},
	}}
	s := newTestScheduler(repo, &stubNotifier{}, now)

	if err := s.reload(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(s.window) != 2 || s.window[0].InteractionID != "soon" {
		t.Fatalf("окно должно быть отсортировано по сроку: %v", s.window)
	}
}
