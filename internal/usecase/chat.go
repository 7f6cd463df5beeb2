package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"formula-agent/internal/catalog"
	"formula-agent/internal/dialogue"
	"formula-agent/internal/domain"
	"formula-agent/internal/dosage"
	"formula-agent/internal/normalize"
	"formula-agent/internal/repository"
)

const (
	defaultMaxContext    = 20
	defaultMaxMessageLen = 500
	defaultCooldown      = 4 * time.Second
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (domain.Completion, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type SessionStore interface {
	GetSession(ctx context.Context, id string) (domain.Session, bool, error)
	GetHistory(ctx context.Context, id string, limit int) ([]domain.Turn, error)
	CreateSession(ctx context.Context, sess domain.Session, turns ...domain.Turn) error
	SaveTurn(ctx context.Context, sess domain.Session, expectedTurns int, turns ...domain.Turn) error
}

type CatalogSource interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
}

type ToolRunner interface {
	Definitions() []domain.ToolDefinition
	Execute(ctx context.Context, call domain.ToolCall) string
}

type CheckoutClient interface {
	Create(ctx context.Context, order domain.Order) (string, error)
}

// Config holds the service limits. Zero values fall back to defaults.
type Config struct {
	ParamPrefix      string
	MaxContextItems  int
	MaxMessageLength int
	Cooldown         time.Duration
}

type Option func(*ChatService)

func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) { s.log = l }
}

// WithRandom sets the random source used for goal defaults.
func WithRandom(intn func(n int) int) Option {
	return func(s *ChatService) { s.intn = intn }
}

// WithTools enables function calling during turns.
func WithTools(t ToolRunner) Option {
	return func(s *ChatService) { s.tools = t }
}

// WithCheckout enables checkout links for completed formulas.
func WithCheckout(c CheckoutClient) Option {
	return func(s *ChatService) { s.checkout = c }
}

// ChatService runs the guided formula conversation.
type ChatService struct {
	params    ParamGetter
	llm       LLMClient
	store     SessionStore
	catalog   CatalogSource
	tools     ToolRunner
	checkout  CheckoutClient
	registry  *dialogue.Registry
	validator *dosage.Validator
	cfg       Config
	now       func() time.Time
	intn      func(n int) int
	log       *slog.Logger

	cacheMu     sync.RWMutex
	cacheLoaded bool
	openaiModel string
}

type StartOutput struct {
	SessionID string
	Reply     domain.Reply
}

type TurnInput struct {
	SessionID string
	// Component is the slot the client rendered; the stored last-asked slot
	// is used when it is empty or unknown.
	Component string
	Value     string
}

type TurnOutput struct {
	SessionID   string
	Reply       domain.Reply
	Form        domain.FormState
	CheckoutURL string
	CheckoutOK  bool
}

func NewChatService(p ParamGetter, llm LLMClient, store SessionStore, cat CatalogSource, cfg Config, opts ...Option) (*ChatService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if cat == nil {
		return nil, errors.New("usecase: catalog source must not be nil")
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if cfg.MaxContextItems <= 0 {
		cfg.MaxContextItems = defaultMaxContext
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxMessageLen
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}

	s := &ChatService{
		params:   p,
		llm:      llm,
		store:    store,
		catalog:  cat,
		registry: dialogue.DefaultRegistry(),
		cfg:      cfg,
		now:      time.Now,
		intn:     rand.Intn,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = dosage.NewValidator(s.log)
	return s, nil
}

// Start opens a new session and returns its first question.
func (s *ChatService) Start(ctx context.Context) (StartOutput, error) {
	if err := s.ensureConfig(ctx); err != nil {
		return StartOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return StartOutput{}, newError(ErrorInternal, "catalog_load_error", err)
	}

	id := newUUID()
	log := s.log.With("session_id", id)

	completion, err := s.llm.Chat(ctx, domain.ChatRequest{
		Model:      s.openaiModel,
		Messages:   buildPromptMessages(promptContext{registry: s.registry, catalog: cat}, "", openingInstruction()),
		JSONObject: true,
	})
	if err != nil {
		return StartOutput{}, upstreamError("openai", err)
	}
	reply, err := parseReply(completion.Content, s.registry)
	if err != nil || reply.IsComplete {
		log.Warn("opening reply unusable, using default question", "error", err)
		reply = s.registry.NextQuestion(nil)
	}
	reply = fillOptions(reply, cat)

	now := s.now()
	sess := domain.Session{
		ID:        id,
		Form:      domain.FormState{},
		LastAsked: reply.Component,
	}
	if err := s.store.CreateSession(ctx, sess, botTurn(reply, now)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return StartOutput{}, newError(ErrorConflict, "session_exists", err)
		}
		return StartOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	log.Info("session started", "component", reply.Component)
	return StartOutput{SessionID: id, Reply: reply}, nil
}

// Turn processes one user answer and returns the next bot reply.
func (s *ChatService) Turn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	value := strings.TrimSpace(in.Value)
	if sessionID == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "missing_session", nil)
	}
	if value == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(value) > s.cfg.MaxMessageLength {
		return TurnOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return TurnOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	sess, found, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if !found {
		return TurnOutput{}, newError(ErrorInvalidInput, "unknown_session", nil)
	}
	if sess.Complete {
		return TurnOutput{}, newError(ErrorInvalidInput, "session_complete", nil)
	}
	log := s.log.With("session_id", sessionID)

	now := s.now()
	if !sess.LastRequestAt.IsZero() && now.Sub(sess.LastRequestAt) < s.cfg.Cooldown {
		return TurnOutput{}, newError(ErrorRateLimited, reasonCooldown, nil)
	}

	flagged, err := s.llm.Moderate(ctx, value)
	if err != nil {
		return TurnOutput{}, upstreamError("moderation", err)
	}
	if flagged {
		return TurnOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
	}

	history, err := s.store.GetHistory(ctx, sessionID, s.cfg.MaxContextItems)
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "catalog_load_error", err)
	}

	previous := lastBotTurn(history)
	directive := s.registry.Resume(sess.Form, s.answeredSlot(in.Component, sess, previous))

	var pending string
	ingredients := sess.Ingredients
	if !directive.Done {
		pending, ingredients = s.normalizeAnswer(value, directive.Slot.Key, previous, sess.Ingredients, cat)
	}

	var extra []string
	if !directive.Done {
		if directive.Slot.Key == domain.SlotFlavors {
			var missing []string
			pending, missing = stockedFlavors(pending, cat)
			if len(missing) > 0 {
				log.Info("requested flavors out of stock", "flavors", missing)
				extra = append(extra, outOfStockInstruction(missing, cat.FlavorNames()))
			}
		}
		if pending != "" {
			extra = append(extra, answerInstruction(directive.Slot.Key, value, pending))
		}
	}
	messages := buildPromptMessages(promptContext{
		registry: s.registry,
		catalog:  cat,
		form:     sess.Form,
		history:  history,
	}, value, extra...)

	reply, commit, err := s.respond(ctx, log, messages, directive, sess.Form, pending)
	if err != nil {
		return TurnOutput{}, err
	}

	form := sess.Form.Clone()
	if commit {
		form[directive.Slot.Key] = pending
		sess.Ingredients = ingredients
	}
	reply = s.finishReply(reply, form, cat)
	if len(reply.Ingredients) > 0 {
		sess.Ingredients = reply.Ingredients
	}

	out := TurnOutput{SessionID: sessionID, Form: form}
	if reply.IsComplete {
		reply, out.CheckoutURL, out.CheckoutOK = s.complete(ctx, log, sess, form, reply, cat)
		sess.Complete = true
		sess.CheckoutURL = out.CheckoutURL
	}
	out.Reply = reply

	expected := sess.Turns
	sess.Form = form
	sess.LastAsked = reply.Component
	sess.LastRequestAt = now
	sess.Turns++
	userTurn := domain.Turn{Sender: domain.SenderUser, Text: value, Component: directive.Slot.Key, CreatedAt: now}
	if err := s.store.SaveTurn(ctx, sess, expected, userTurn, botTurn(reply, now)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return TurnOutput{}, newError(ErrorConflict, "concurrent_turn", err)
		}
		return TurnOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return out, nil
}

// answeredSlot finds the slot the user is answering: the client's component,
// then the stored last-asked slot, then the previous bot turn.
func (s *ChatService) answeredSlot(component string, sess domain.Session, previous *domain.Turn) *domain.Slot {
	candidates := []domain.SlotKey{domain.SlotKey(strings.TrimSpace(component)), sess.LastAsked}
	if previous != nil {
		candidates = append(candidates, previous.Component)
	}
	for _, key := range candidates {
		if slot, ok := s.registry.Lookup(key); ok {
			return &slot
		}
	}
	return nil
}

// normalizeAnswer returns the value to store for slot. Dosage answers carry
// per-ingredient choices and also return the adjusted ingredient list.
func (s *ChatService) normalizeAnswer(value string, slot domain.SlotKey, previous *domain.Turn, ingredients []domain.Ingredient, cat *catalog.Catalog) (string, []domain.Ingredient) {
	if slot == domain.SlotDosage && len(ingredients) > 0 {
		if v, chosen, ok := s.dosageValue(value, ingredients); ok {
			return v, chosen
		}
	}
	n := normalize.New(normalize.WithRandom(s.intn), normalize.WithFlavors(cat.FlavorNames()))
	return n.Normalize(value, slot, previous), ingredients
}

// dosageValue reads a JSON name->amount map, or accepts the suggestions when
// the user confirms them in words.
func (s *ChatService) dosageValue(value string, ingredients []domain.Ingredient) (string, []domain.Ingredient, bool) {
	var choices map[string]float64
	if err := json.Unmarshal([]byte(value), &choices); err != nil {
		if !normalize.AcceptsSuggestion(value) {
			return "", nil, false
		}
		choices = nil
	}
	chosen, _ := s.validator.ApplyDosageChoices(ingredients, choices)
	amounts := make(map[string]float64, len(chosen))
	for _, ing := range chosen {
		amounts[ing.Name] = ing.Suggested
	}
	b, err := json.Marshal(amounts)
	if err != nil {
		return "", nil, false
	}
	return string(b), chosen, true
}

// stockedFlavors drops flavor picks the catalog cannot fill. An empty result
// means nothing should be stored for the slot.
func stockedFlavors(pending string, cat *catalog.Catalog) (string, []string) {
	picks := splitFlavors(pending)
	if len(picks) == 0 {
		return pending, nil
	}
	var kept, missing []string
	for _, f := range picks {
		if cat.FlavorInStock(f) {
			kept = append(kept, f)
		} else {
			missing = append(missing, f)
		}
	}
	return strings.Join(kept, ", "), missing
}

// finishReply keeps the reply inside the flow and the catalog.
func (s *ChatService) finishReply(reply domain.Reply, form domain.FormState, cat *catalog.Catalog) domain.Reply {
	if !reply.IsComplete {
		slot, ok := s.registry.Lookup(reply.Component)
		if !ok || !s.registry.Applies(slot, form) {
			s.log.Warn("reply targets a component outside the flow", "component", reply.Component)
			reply = s.registry.NextQuestion(form)
		}
	}
	reply = fillOptions(reply, cat)
	if len(reply.Ingredients) > 0 {
		reply.Ingredients = s.clampIngredients(cat, reply.Ingredients)
	}
	if reply.FormulaSummary != nil && len(reply.FormulaSummary.Ingredients) > 0 {
		summary := *reply.FormulaSummary
		summary.Ingredients = s.clampIngredients(cat, summary.Ingredients)
		reply.FormulaSummary = &summary
	}
	return reply
}

func (s *ChatService) clampIngredients(cat *catalog.Catalog, in []domain.Ingredient) []domain.Ingredient {
	out, _ := s.validator.Validate(boundIngredients(cat, in))
	return out
}

// complete fills in the formula summary and asks checkout for a link.
// A checkout failure leaves the formula complete without a link.
func (s *ChatService) complete(ctx context.Context, log *slog.Logger, sess domain.Session, form domain.FormState, reply domain.Reply, cat *catalog.Catalog) (domain.Reply, string, bool) {
	var summary domain.FormulaSummary
	if reply.FormulaSummary != nil {
		summary = *reply.FormulaSummary
	}
	if len(summary.Ingredients) == 0 {
		summary.Ingredients = s.clampIngredients(cat, sess.Ingredients)
	}
	if summary.FormulaName == "" {
		summary.FormulaName = form[domain.SlotFormulaName]
	}
	if summary.DeliveryFormat == "" {
		summary.DeliveryFormat = form[domain.SlotFormat]
	}
	summary.SafetyNote = withSafetyWarnings(summary.SafetyNote, summary.Ingredients, cat)

	order := domain.Order{
		SessionID:   sess.ID,
		FormulaName: summary.FormulaName,
		Format:      summary.DeliveryFormat,
		Goal:        form[domain.SlotGoal],
		Sweetener:   form[domain.SlotSweetener],
		Flavors:     splitFlavors(form[domain.SlotFlavors]),
		Ingredients: summary.Ingredients,
	}

	var url string
	ok := false
	if s.checkout != nil {
		created, err := s.checkout.Create(ctx, order)
		if err != nil {
			log.Warn("checkout failed", "error", err)
		} else {
			url, ok = created, true
			summary.RedirectURL = url
		}
	}
	reply.FormulaSummary = &summary
	log.Info("formula complete", "formula", summary.FormulaName, "checkout_ok", ok)
	return reply, url, ok
}

// withSafetyWarnings appends the catalog warning of every ingredient dosed
// above its safety limit.
func withSafetyWarnings(note string, ingredients []domain.Ingredient, cat *catalog.Catalog) string {
	for _, ing := range ingredients {
		limit, ok := cat.SafetyLimit(ing.Name)
		if !ok || ing.Suggested <= limit.Max || limit.Warning == "" {
			continue
		}
		if strings.Contains(note, limit.Warning) {
			continue
		}
		if note != "" {
			note += " "
		}
		note += limit.Warning
	}
	return note
}

func (s *ChatService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.cfg.ParamPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("usecase: openai model parameter is empty")
	}
	s.openaiModel = model
	s.cacheLoaded = true
	return nil
}

func botTurn(reply domain.Reply, at time.Time) domain.Turn {
	r := reply
	return domain.Turn{
		Sender:    domain.SenderBot,
		Text:      reply.Text,
		Component: reply.Component,
		Reply:     &r,
		CreatedAt: at,
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
