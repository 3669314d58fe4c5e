// Package settlement splits an order total into payable parts and tracks
// their payment.
//
// Every split has its own lock, so two terminals paying the same part race
// on that lock and the loser gets apperr.ErrAlreadyPaid.
package settlement

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/calculator"
	"github.com/mmynk/tableside/internal/models"
)

const (
	MinParts = 2
	MaxParts = 20
)

// Observer is notified of created splits and paid parts.
type Observer interface {
	SplitCreated(mode models.SplitMode)
	PartPaid(method models.PaymentMethod, amount decimal.Decimal)
}

type nopObserver struct{}

func (nopObserver) SplitCreated(models.SplitMode)                   {}
func (nopObserver) PartPaid(models.PaymentMethod, decimal.Decimal) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithObserver sets the observer notified of payments.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.obs = obs }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type entry struct {
	mu    sync.Mutex
	split models.SplitBill
}

// Engine owns every split created in this process.
type Engine struct {
	scale  int32
	logger *slog.Logger
	obs    Observer
	now    func() time.Time

	mu     sync.RWMutex
	splits map[string]*entry
}

// New creates an Engine working at the given currency scale.
func New(scale int32, opts ...Option) *Engine {
	e := &Engine{
		scale:  scale,
		logger: slog.Default(),
		obs:    nopObserver{},
		now:    time.Now,
		splits: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateEqualSplit divides the order total into n parts. Parts 1..n-1 get
// the ceiling share and part n gets the remainder, so the parts sum to the
// total exactly.
func (e *Engine) CreateEqualSplit(order models.Order, n int) (models.SplitBill, error) {
	if err := validateSplit(order, n); err != nil {
		return models.SplitBill{}, err
	}

	amounts, err := calculator.Partition(order.Total, n, e.scale)
	if err != nil {
		return models.SplitBill{}, fmt.Errorf("%w: %v", apperr.ErrInvalidPartCount, err)
	}

	split := e.newSplit(order, models.SplitEqual, n)
	for i, amount := range amounts {
		split.Parts[i].Amount = amount
	}
	return e.store(split), nil
}

// CreateItemSplit creates n empty parts to be filled with AssignItemToPart
// or AssignSharedItem.
func (e *Engine) CreateItemSplit(order models.Order, n int) (models.SplitBill, error) {
	if err := validateSplit(order, n); err != nil {
		return models.SplitBill{}, err
	}
	return e.store(e.newSplit(order, models.SplitByItem, n)), nil
}

func validateSplit(order models.Order, n int) error {
	if n < MinParts || n > MaxParts {
		return fmt.Errorf("%w: got %d, want %d to %d", apperr.ErrInvalidPartCount, n, MinParts, MaxParts)
	}
	switch order.Status {
	case models.OrderCompleted:
	case models.OrderCancelled:
		return fmt.Errorf("%w: order %s is cancelled", apperr.ErrOrderClosed, order.ID)
	default:
		return fmt.Errorf("%w: order %s is %s", apperr.ErrOrderNotCompleted, order.ID, order.Status)
	}
	if order.Total.Sign() <= 0 {
		return fmt.Errorf("%w: order %s total is %s", apperr.ErrEmptyOrder, order.ID, order.Total)
	}
	return nil
}

func (e *Engine) newSplit(order models.Order, mode models.SplitMode, n int) models.SplitBill {
	split := models.SplitBill{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Mode:      mode,
		Parts:     make([]models.SplitBillPart, n),
		Total:     order.Total,
		Status:    models.SplitPending,
		CreatedAt: e.now(),
	}
	for i := range split.Parts {
		split.Parts[i].Number = i + 1
	}
	return split
}

func (e *Engine) store(split models.SplitBill) models.SplitBill {
	e.mu.Lock()
	e.splits[split.ID] = &entry{split: split.Clone()}
	e.mu.Unlock()

	e.obs.SplitCreated(split.Mode)
	e.logger.Info("Split created",
		"split_id", split.ID,
		"order_id", split.OrderID,
		"mode", split.Mode,
		"parts", len(split.Parts),
		"total", split.Total.String(),
	)
	return split
}

// Restore registers a split loaded from storage, replacing any split with
// the same ID.
func (e *Engine) Restore(split models.SplitBill) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.splits[split.ID] = &entry{split: split.Clone()}
}

func (e *Engine) lookup(splitID string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	en, ok := e.splits[splitID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrSplitNotFound, splitID)
	}
	return en, nil
}

// Get returns a copy of a split.
func (e *Engine) Get(splitID string) (models.SplitBill, error) {
	en, err := e.lookup(splitID)
	if err != nil {
		return models.SplitBill{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.split.Clone(), nil
}

// AssignItemToPart adds lineTotal/shareCount, rounded up, to a part. For a
// line shared by several parts the caller makes one call per part and
// reconciles the rounding surplus; AssignSharedItem does both.
func (e *Engine) AssignItemToPart(splitID, lineID string, partNumber int, lineTotal decimal.Decimal, shareCount int) (models.SplitBillPart, error) {
	if shareCount < 1 {
		return models.SplitBillPart{}, fmt.Errorf("%w: got %d", apperr.ErrInvalidShareCount, shareCount)
	}
	if lineTotal.Sign() < 0 {
		return models.SplitBillPart{}, fmt.Errorf("%w: line total %s", apperr.ErrInvalidPrice, lineTotal)
	}

	en, err := e.lookup(splitID)
	if err != nil {
		return models.SplitBillPart{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	part, err := assignablePart(&en.split, partNumber)
	if err != nil {
		return models.SplitBillPart{}, err
	}
	addItem(part, lineID, calculator.CeilDiv(lineTotal, int64(shareCount), e.scale))

	c := *part
	c.Items = append([]models.PartItem(nil), part.Items...)
	return c, nil
}

// AssignSharedItem spreads lineTotal over the listed parts. The shares sum
// to lineTotal exactly; the last listed part takes the rounding difference.
// Nothing is assigned if any part is missing or paid.
func (e *Engine) AssignSharedItem(splitID, lineID string, partNumbers []int, lineTotal decimal.Decimal) (models.SplitBill, error) {
	if len(partNumbers) == 0 {
		return models.SplitBill{}, fmt.Errorf("%w: no parts given", apperr.ErrInvalidShareCount)
	}
	if lineTotal.Sign() < 0 {
		return models.SplitBill{}, fmt.Errorf("%w: line total %s", apperr.ErrInvalidPrice, lineTotal)
	}

	en, err := e.lookup(splitID)
	if err != nil {
		return models.SplitBill{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	seen := make(map[int]bool, len(partNumbers))
	parts := make([]*models.SplitBillPart, len(partNumbers))
	for i, n := range partNumbers {
		if seen[n] {
			return models.SplitBill{}, fmt.Errorf("%w: part %d listed twice", apperr.ErrInvalidShareCount, n)
		}
		seen[n] = true
		if parts[i], err = assignablePart(&en.split, n); err != nil {
			return models.SplitBill{}, err
		}
	}

	shares, err := calculator.Shares(lineTotal, len(parts), e.scale)
	if err != nil {
		return models.SplitBill{}, fmt.Errorf("%w: %v", apperr.ErrInvalidShareCount, err)
	}
	for i, part := range parts {
		addItem(part, lineID, shares[i])
	}
	return en.split.Clone(), nil
}

func assignablePart(split *models.SplitBill, number int) (*models.SplitBillPart, error) {
	if split.Mode != models.SplitByItem {
		return nil, fmt.Errorf("%w: split %s is %s", apperr.ErrInvalidTransition, split.ID, split.Mode)
	}
	if number < 1 || number > len(split.Parts) {
		return nil, fmt.Errorf("%w: part %d of split %s", apperr.ErrPartNotFound, number, split.ID)
	}
	part := &split.Parts[number-1]
	if part.Paid {
		return nil, fmt.Errorf("%w: part %d of split %s", apperr.ErrAlreadyPaid, number, split.ID)
	}
	return part, nil
}

func addItem(part *models.SplitBillPart, lineID string, amount decimal.Decimal) {
	part.Amount = part.Amount.Add(amount)
	part.Items = append(part.Items, models.PartItem{LineID: lineID, Amount: amount})
}

// SetPayer names who pays a part.
func (e *Engine) SetPayer(splitID string, partNumber int, name string) error {
	en, err := e.lookup(splitID)
	if err != nil {
		return err
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	part, ok := partRef(&en.split, partNumber)
	if !ok {
		return fmt.Errorf("%w: part %d of split %s", apperr.ErrPartNotFound, partNumber, splitID)
	}
	if part.Paid {
		return fmt.Errorf("%w: part %d of split %s", apperr.ErrAlreadyPaid, partNumber, splitID)
	}
	part.PayerName = name
	return nil
}

// PayPart marks a part paid with the given method. Paying a part twice, from
// any number of callers, succeeds once; every other call gets
// apperr.ErrAlreadyPaid.
func (e *Engine) PayPart(splitID string, partNumber int, method models.PaymentMethod) (models.SplitBill, error) {
	if method == "" {
		return models.SplitBill{}, apperr.ErrInvalidPayment
	}

	en, err := e.lookup(splitID)
	if err != nil {
		return models.SplitBill{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	part, ok := partRef(&en.split, partNumber)
	if !ok {
		return models.SplitBill{}, fmt.Errorf("%w: part %d of split %s", apperr.ErrPartNotFound, partNumber, splitID)
	}
	if part.Paid {
		return models.SplitBill{}, fmt.Errorf("%w: part %d of split %s", apperr.ErrAlreadyPaid, partNumber, splitID)
	}
	if part.Amount.Sign() <= 0 {
		return models.SplitBill{}, fmt.Errorf("%w: part %d of split %s", apperr.ErrZeroAmount, partNumber, splitID)
	}

	part.Paid = true
	part.Method = method
	part.PaidAt = e.now()
	en.split.Status = status(en.split.Parts)

	e.obs.PartPaid(method, part.Amount)
	e.logger.Info("Part paid",
		"split_id", splitID,
		"order_id", en.split.OrderID,
		"part", partNumber,
		"method", method,
		"amount", part.Amount.String(),
		"split_status", en.split.Status,
	)
	return en.split.Clone(), nil
}

func partRef(split *models.SplitBill, number int) (*models.SplitBillPart, bool) {
	if number < 1 || number > len(split.Parts) {
		return nil, false
	}
	return &split.Parts[number-1], true
}

// status is only called after a payment, so it never returns PENDING.
func status(parts []models.SplitBillPart) models.SplitStatus {
	for _, p := range parts {
		if !p.Paid {
			return models.SplitPartial
		}
	}
	return models.SplitCompleted
}

// IsFullyPaid reports whether every part of the split is paid.
func (e *Engine) IsFullyPaid(splitID string) (bool, error) {
	split, err := e.Get(splitID)
	if err != nil {
		return false, err
	}
	for _, p := range split.Parts {
		if !p.Paid {
			return false, nil
		}
	}
	return true, nil
}

// Unassigned returns how much of the split total no part covers yet.
// It is negative when unreconciled ceiling shares overshoot the total.
func (e *Engine) Unassigned(splitID string) (decimal.Decimal, error) {
	split, err := e.Get(splitID)
	if err != nil {
		return decimal.Zero, err
	}
	assigned := decimal.Zero
	for _, p := range split.Parts {
		assigned = assigned.Add(p.Amount)
	}
	return split.Total.Sub(assigned), nil
}

// Summary reports what has been collected on a split, by payment method.
func (e *Engine) Summary(splitID string) (calculator.Summary, error) {
	split, err := e.Get(splitID)
	if err != nil {
		return calculator.Summary{}, err
	}
	parts := make([]calculator.PartForSummary, len(split.Parts))
	for i, p := range split.Parts {
		parts[i] = calculator.PartForSummary{Amount: p.Amount, Paid: p.Paid, Method: string(p.Method)}
	}
	return calculator.Summarize(parts), nil
}
