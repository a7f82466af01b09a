package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventflow/internal/clock"
	"eventflow/internal/eventbus"
	"eventflow/internal/model"
	"eventflow/internal/repository"
	"eventflow/internal/service"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last payload is not a text message")
	return msg.Text
}

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) ManualRefresh(context.Context) error {
	s.calls++
	return s.err
}

type fixedStats struct{ stats model.Stats }

func (f fixedStats) Current() model.Stats { return f.stats }
func (f fixedStats) Tick() model.Stats    { return f.stats }

type botFixture struct {
	bot     *Bot
	out     *fakeSender
	store   *service.EventStore
	bus     *eventbus.Bus
	refresh *stubRefresher
}

func newFixture(t *testing.T, events ...model.Event) *botFixture {
	t.Helper()
	bus := eventbus.New(nil)
	store := service.NewEventStore(nil, bus, service.WithEvents(events))
	out := &fakeSender{}
	refresh := &stubRefresher{}
	b := newBot(out, Deps{
		Store:    store,
		Stats:    fixedStats{stats: model.BaselineStats()},
		Refresh:  refresh,
		Clock:    clock.NewFake(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)),
		Location: time.UTC,
	})
	b.Subscribe(bus)
	return &botFixture{bot: b, out: out, store: store, bus: bus, refresh: refresh}
}

func command(chatID int64, text string) *tgbotapi.Message {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Sam"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func (f *botFixture) run(t *testing.T, text string) string {
	t.Helper()
	require.NoError(t, f.bot.handleMessage(context.Background(), command(1, text)))
	return f.out.lastText(t)
}

func TestAddCommandCreatesEvent(t *testing.T) {
	f := newFixture(t)

	text := f.run(t, "/add Team sync | 2025-01-15 | 14:30 | 45")
	assert.Contains(t, text, "Added")
	assert.Contains(t, text, "02:30 PM to 03:15 PM")

	events := f.store.List()
	require.Len(t, events, 1)
	assert.Equal(t, "Team sync", events[0].Title)
	assert.Equal(t, 45, events[0].DurationMinutes)
}

func TestAddCommandReportsValidation(t *testing.T) {
	f := newFixture(t)

	text := f.run(t, "/add Hi | | 14:30")
	assert.Contains(t, text, "Please fix")
	assert.Contains(t, text, "title:")
	assert.Contains(t, text, "date:")
	assert.Empty(t, f.store.List())

	text = f.run(t, "/add only a title")
	assert.Contains(t, text, "Usage")
}

func TestDoneMoveDeleteByPrefix(t *testing.T) {
	f := newFixture(t, model.Event{ID: "abcdef123456", Title: "Review", Date: "2025-01-15", Time: "09:00 AM", Status: model.StatusUpcoming})

	assert.Contains(t, f.run(t, "/done abcdef12"), "marked completed")
	ev, err := f.store.Get("abcdef123456")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, ev.Status)

	assert.Contains(t, f.run(t, "/move abc 2025-01-16 02:00 PM"), "Moved to Thu, Jan 16, 2025")
	ev, _ = f.store.Get("abcdef123456")
	assert.Equal(t, "02:00 PM", ev.Time)

	assert.Contains(t, f.run(t, "/delete abcdef123456"), "removed")
	assert.Empty(t, f.store.List())

	assert.Equal(t, "Event not found.", f.run(t, "/done abc"))
}

func TestAmbiguousPrefix(t *testing.T) {
	f := newFixture(t,
		model.Event{ID: "ab1", Title: "One", Date: "2025-01-15", Time: "09:00 AM"},
		model.Event{ID: "ab2", Title: "Two", Date: "2025-01-15", Time: "10:00 AM"},
	)
	assert.Contains(t, f.run(t, "/done ab"), "Several events match")
}

func TestEventsCommandAddsButtonsForOpenEvents(t *testing.T) {
	f := newFixture(t,
		model.Event{ID: "a", Title: "Open", Date: "2025-01-15", Time: "09:00 AM", Status: model.StatusUpcoming},
		model.Event{ID: "b", Title: "Closed", Date: "2025-01-14", Time: "09:00 AM", Status: model.StatusCompleted},
	)
	require.NoError(t, f.bot.handleMessage(context.Background(), command(1, "/events")))

	msg := f.out.sent[len(f.out.sent)-1].(tgbotapi.MessageConfig)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "done:a", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Contains(t, msg.Text, "Wed, Jan 15, 2025 · today")
}

func TestCallbackCompletesEvent(t *testing.T) {
	f := newFixture(t, model.Event{ID: "a", Title: "Open", Date: "2025-01-15", Time: "09:00 AM", Status: model.StatusUpcoming})

	err := f.bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "done:a",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.out.requests)
	ev, _ := f.store.Get("a")
	assert.Equal(t, model.StatusCompleted, ev.Status)
}

func TestRefreshCommand(t *testing.T) {
	f := newFixture(t)
	text := f.run(t, "/refresh")
	assert.Equal(t, 1, f.refresh.calls)
	assert.Contains(t, text, "Updated at 08:00:00 AM")
	assert.Contains(t, text, "Team available: <b>18/20</b>")

	f.refresh.err = context.DeadlineExceeded
	assert.Contains(t, f.run(t, "/refresh"), "Refresh interrupted")
}

func TestICSCommandSendsDocument(t *testing.T) {
	f := newFixture(t, model.Event{ID: "a", Title: "Open", Date: "2025-01-15", Time: "09:00 AM"})
	require.NoError(t, f.bot.handleMessage(context.Background(), command(1, "/ics")))

	doc, ok := f.out.sent[len(f.out.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "events.ics", file.Name)
	assert.Contains(t, string(file.Bytes), "BEGIN:VEVENT")
}

func TestSubscribersGetStatusChanges(t *testing.T) {
	f := newFixture(t, model.Event{ID: "a", Title: "Standup", Date: "2025-01-15", Time: "09:00 AM", Status: model.StatusUpcoming})
	f.run(t, "/start")

	f.store.ApplyStatuses(context.Background(), time.Date(2025, 1, 15, 9, 5, 0, 0, time.UTC), service.GranularityMinute)

	require.Len(t, f.bot.outbox, 1)
	msg := (<-f.bot.outbox).(tgbotapi.MessageConfig)
	assert.Equal(t, int64(1), msg.ChatID)
	assert.Contains(t, msg.Text, "<b>Standup</b> has started")

	// nothing new
	f.store.ApplyStatuses(context.Background(), time.Date(2025, 1, 15, 9, 6, 0, 0, time.UTC), service.GranularityMinute)
	assert.Empty(t, f.bot.outbox)
}

func TestPersistenceWarningIsSentOnce(t *testing.T) {
	f := newFixture(t)
	f.run(t, "/start")

	warning := &repository.PersistenceError{Op: "save", Key: repository.EventsKey, Err: errors.New("disk full")}
	f.bus.Publish(eventbus.TopicPersistenceWarning, warning)
	f.bus.Publish(eventbus.TopicPersistenceWarning, warning)

	require.Len(t, f.bot.outbox, 1)
	msg := (<-f.bot.outbox).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "save failed")
}

func TestDecodeWarningDoesNotClaimDegradedStorage(t *testing.T) {
	f := newFixture(t)
	f.run(t, "/start")

	f.bus.Publish(eventbus.TopicPersistenceWarning, &repository.PersistenceError{Op: "decode", Key: repository.EventsKey, Err: errors.New("not an array")})
	require.Len(t, f.bot.outbox, 1)
	msg := (<-f.bot.outbox).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "could not be read")
	assert.NotContains(t, msg.Text, "rest of this session")

	f.bus.Publish(eventbus.TopicPersistenceWarning, &repository.PersistenceError{Op: "save", Key: repository.EventsKey, Err: errors.New("disk full")})
	require.Len(t, f.bot.outbox, 1)
	msg = (<-f.bot.outbox).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "rest of this session (save failed)")
}

func TestDailyDigestGoesToSubscribers(t *testing.T) {
	f := newFixture(t, model.Event{ID: "a", Title: "Standup", Date: "2025-01-15", Time: "09:00 AM"})
	f.run(t, "/start")
	require.NoError(t, f.bot.handleMessage(context.Background(), command(2, "/start")))
	before := len(f.out.sent)

	require.NoError(t, f.bot.SendDailyDigest(context.Background()))

	assert.Len(t, f.out.sent, before+2)
	assert.Contains(t, f.out.lastText(t), "Today's agenda")
	assert.Contains(t, f.out.lastText(t), "Standup")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.run(t, "/bogus"), "Unknown command")
}
