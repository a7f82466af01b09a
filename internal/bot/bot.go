package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eventflow/internal/clock"
	"eventflow/internal/eventbus"
	"eventflow/internal/export"
	"eventflow/internal/logger"
	"eventflow/internal/model"
	"eventflow/internal/repository"
	"eventflow/internal/service"
	"eventflow/internal/timefmt"
)

const (
	cbDonePrefix   = "done:"
	cbDeletePrefix = "del:"

	outboxSize  = 64
	refreshWait = 10 * time.Second
)

const (
	menuLabelEvents  = "📋 Events"
	menuLabelWeek    = "📅 Week"
	menuLabelStats   = "📊 Stats"
	menuLabelRefresh = "🔄 Refresh"
)

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Refresher runs an immediate update cycle.
type Refresher interface {
	ManualRefresh(ctx context.Context) error
}

// Deps are the engine components the bot renders and drives.
type Deps struct {
	Store    *service.EventStore
	Stats    service.StatsEngine
	Refresh  Refresher
	Clock    clock.Clock
	Location *time.Location
	Log      *logger.Logger
}

// Bot aggregates Telegram API with the event engine.
type Bot struct {
	api     *tgbotapi.BotAPI
	out     sender
	store   *service.EventStore
	stats   service.StatsEngine
	refresh Refresher
	clock   clock.Clock
	loc     *time.Location
	log     *logger.Logger

	mu          sync.Mutex
	subscribers map[int64]struct{}
	lastSeen    map[model.EventID]model.Status
	warned      bool

	outbox chan tgbotapi.Chattable
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, deps)
	b.api = api
	b.log.Info("bot authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(out sender, deps Deps) *Bot {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{Location: deps.Location}
	}
	return &Bot{
		out:         out,
		store:       deps.Store,
		stats:       deps.Stats,
		refresh:     deps.Refresh,
		clock:       deps.Clock,
		loc:         deps.Location,
		log:         deps.Log,
		subscribers: make(map[int64]struct{}),
		lastSeen:    statusIndex(deps.Store.List()),
		outbox:      make(chan tgbotapi.Chattable, outboxSize),
	}
}

// Subscribe attaches the bot's notifications to bus.
func (b *Bot) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TopicEventsChanged, b.onEventsChanged)
	bus.Subscribe(eventbus.TopicPersistenceWarning, b.onPersistenceWarning)
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot api is not initialised")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()
	go b.drainOutbox(ctx)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		b.log.Info("command", "chat", msg.Chat.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelEvents:
		return b.handleEvents(msg.Chat.ID)
	case menuLabelWeek:
		return b.handleWeek(msg.Chat.ID)
	case menuLabelStats:
		return b.handleStats(msg.Chat.ID)
	case menuLabelRefresh:
		return b.handleRefresh(ctx, msg.Chat.ID)
	}
	return b.sendText(msg.Chat.ID, "I did not understand that. Send /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "events":
		return b.handleEvents(chatID)
	case "week":
		return b.handleWeek(chatID)
	case "stats":
		return b.handleStats(chatID)
	case "team":
		return b.sendText(chatID, renderTeam(b.store.Team()))
	case "refresh":
		return b.handleRefresh(ctx, chatID)
	case "add":
		return b.handleAdd(ctx, chatID, args)
	case "done":
		return b.handleDone(ctx, chatID, args)
	case "move":
		return b.handleMove(ctx, chatID, args)
	case "delete":
		return b.handleDelete(ctx, chatID, args)
	case "ics":
		return b.handleICS(chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /events: all events grouped by day\n" +
	"• /week: the next seven days\n" +
	"• /stats: dashboard numbers\n" +
	"• /team: who is on the team\n" +
	"• /refresh: update everything now\n" +
	"• /add Title | YYYY-MM-DD | HH:MM [| minutes]\n" +
	"• /done &lt;id&gt;: mark an event completed\n" +
	"• /move &lt;id&gt; YYYY-MM-DD HH:MM: reschedule\n" +
	"• /delete &lt;id&gt;: remove an event\n" +
	"• /ics: download the calendar"

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	b.mu.Lock()
	b.subscribers[msg.Chat.ID] = struct{}{}
	b.mu.Unlock()

	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep the team's events in order.</b>\n"+
		"You will get a note when an event starts or ends, plus a morning agenda.\n\n%s",
		escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleEvents(chatID int64) error {
	today := b.today()
	groups := service.GroupAndSort(b.store.List(), today)

	msg := tgbotapi.NewMessage(chatID, renderEventGroups(groups, today))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := eventKeyboard(service.Flatten(groups)); ok {
		msg.ReplyMarkup = kb
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) handleWeek(chatID int64) error {
	days := service.Week(b.clock.Now().In(b.loc), 7)
	return b.sendText(chatID, renderWeek(days, b.store.List(), b.today()))
}

func (b *Bot) handleStats(chatID int64) error {
	return b.sendText(chatID, renderStats(b.stats.Current(), b.store.Degraded()))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64) error {
	if b.refresh == nil {
		return b.handleStats(chatID)
	}
	refreshCtx, cancel := context.WithTimeout(ctx, refreshWait)
	defer cancel()
	if err := b.refresh.ManualRefresh(refreshCtx); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Refresh interrupted: %s", escape(err.Error())))
	}
	text := renderStats(b.stats.Current(), b.store.Degraded()) +
		fmt.Sprintf("\n\n🔄 Updated at %s", timefmt.FormatClock(b.clock.Now().In(b.loc)))
	return b.sendText(chatID, text)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) error {
	draft, err := parseAddArgs(args)
	if errors.Is(err, errUsage) {
		return b.sendText(chatID, "Usage: /add Team sync | 2025-01-15 | 14:30 | 45")
	}
	if err != nil {
		return b.sendText(chatID, escape(err.Error()))
	}
	ev, err := b.store.Add(ctx, draft)
	if err != nil {
		return b.sendText(chatID, renderValidation(err))
	}
	return b.sendText(chatID, "➕ Added\n"+formatEvent(ev))
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, args string) error {
	id, err := b.resolveID(args)
	if err != nil {
		return b.sendText(chatID, b.lookupMessage(err, "/done 1a2b3c4d"))
	}
	ev, err := b.store.Complete(ctx, id)
	if err != nil {
		return b.sendText(chatID, renderValidation(err))
	}
	return b.sendText(chatID, fmt.Sprintf("%s <b>%s</b> marked completed.", iconCompleted, escape(normalizeTitle(ev.Title))))
}

func (b *Bot) handleMove(ctx context.Context, chatID int64, args string) error {
	raw, date, clk, err := parseMoveArgs(args)
	if err != nil {
		return b.sendText(chatID, "Usage: /move 1a2b3c4d 2025-01-16 09:30")
	}
	id, err := b.resolveID(raw)
	if err != nil {
		return b.sendText(chatID, b.lookupMessage(err, "/move 1a2b3c4d 2025-01-16 09:30"))
	}
	ev, err := b.store.Move(ctx, id, date, clk)
	if err != nil {
		return b.sendText(chatID, renderValidation(err))
	}
	return b.sendText(chatID, fmt.Sprintf("📆 Moved to %s\n%s", escape(ev.DateFormatted), formatEvent(ev)))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	id, err := b.resolveID(args)
	if err != nil {
		return b.sendText(chatID, b.lookupMessage(err, "/delete 1a2b3c4d"))
	}
	ev, _ := b.store.Get(id)
	b.store.Remove(ctx, id)
	return b.sendText(chatID, fmt.Sprintf("🗑 Event \"%s\" removed.", escape(normalizeTitle(ev.Title))))
}

func (b *Bot) handleICS(chatID int64) error {
	body, err := export.ICS(b.store.List(), b.loc, b.clock.Now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not build the calendar: %s", escape(err.Error())))
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "events.ics", Bytes: []byte(body)})
	doc.Caption = "Import this file into any calendar app."
	_, err = b.out.Send(doc)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack", "error", err)
	}

	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		id := model.EventID(strings.TrimPrefix(cb.Data, cbDonePrefix))
		if _, err := b.store.Complete(ctx, id); err != nil {
			return b.sendText(chatID, b.lookupMessage(err, ""))
		}
		return b.handleEvents(chatID)
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		id := model.EventID(strings.TrimPrefix(cb.Data, cbDeletePrefix))
		b.store.Remove(ctx, id)
		return b.handleEvents(chatID)
	}
	return nil
}

// SendDailyDigest sends today's agenda to every subscriber.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	text := renderDigest(b.store.List(), b.clock.Now().In(b.loc))
	for _, chatID := range b.subscriberList() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Warn("send digest", "chat", chatID, "error", err)
		}
	}
	return nil
}

func (b *Bot) onEventsChanged(m eventbus.Message) {
	events, ok := m.Payload.([]model.Event)
	if !ok {
		return
	}
	b.mu.Lock()
	changed := advanced(b.lastSeen, events)
	b.lastSeen = statusIndex(events)
	b.mu.Unlock()

	for _, e := range changed {
		b.broadcast(renderStatusChange(e))
	}
}

func (b *Bot) onPersistenceWarning(m eventbus.Message) {
	var perr *repository.PersistenceError
	err, _ := m.Payload.(error)
	if err != nil && errors.As(err, &perr) && perr.Op == "decode" {
		b.broadcast(fmt.Sprintf("%s Saved events could not be read, so the sample events are shown. The next change will overwrite the saved copy.", iconWarning))
		return
	}

	b.mu.Lock()
	first := !b.warned
	b.warned = true
	b.mu.Unlock()
	if !first {
		return
	}
	detail := "storage unavailable"
	if perr != nil {
		detail = perr.Op + " failed"
	}
	b.broadcast(fmt.Sprintf("%s Changes will not be saved for the rest of this session (%s).", iconWarning, escape(detail)))
}

// broadcast queues text for every subscriber. Bus handlers run on the
// publisher's goroutine, so sending happens in drainOutbox.
func (b *Bot) broadcast(text string) {
	if text == "" {
		return
	}
	for _, chatID := range b.subscriberList() {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		select {
		case b.outbox <- msg:
		default:
			b.log.Warn("notification dropped", "chat", chatID)
		}
	}
}

func (b *Bot) drainOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			if _, err := b.out.Send(msg); err != nil {
				b.log.Warn("send notification", "error", err)
			}
		}
	}
}

func (b *Bot) subscriberList() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var errAmbiguous = errors.New("ambiguous id")

// resolveID finds the event whose id equals or starts with raw.
func (b *Bot) resolveID(raw string) (model.EventID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errUsage
	}
	var matches []model.EventID
	for _, e := range b.store.List() {
		if string(e.ID) == raw {
			return e.ID, nil
		}
		if strings.HasPrefix(string(e.ID), raw) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve %q: %w", raw, service.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("resolve %q: %w", raw, errAmbiguous)
	}
}

func (b *Bot) lookupMessage(err error, usage string) string {
	switch {
	case errors.Is(err, errUsage):
		return "Usage: " + usage
	case errors.Is(err, service.ErrNotFound):
		return "Event not found."
	case errors.Is(err, errAmbiguous):
		return "Several events match that id. Type a few more characters."
	}
	return renderValidation(err)
}

func (b *Bot) today() string {
	return timefmt.ISO(b.clock.Now().In(b.loc))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func eventKeyboard(events []model.Event) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range events {
		if e.Status == model.StatusCompleted {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(iconCompleted+" "+shortTitle(e.Title, 24), cbDonePrefix+string(e.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+string(e.ID)),
		))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelEvents),
			tgbotapi.NewKeyboardButton(menuLabelWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelRefresh),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
