package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"
)

// OnlineChecker reports whether the remote store is believed reachable
type OnlineChecker interface {
	Online() bool
}

// BillingService is the bill capture workflow: it accumulates line items per
// session, finalizes a bill and decides whether it goes straight to the
// remote store or into the offline queue.
type BillingService struct {
	queue        *OfflineQueue
	remote       repository.RemoteBillStore
	online       OnlineChecker
	log          logrus.FieldLogger
	taxRate      decimal.Decimal
	phoneRegion  string
	deviceID     string
	writeTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	drafts      map[string][]entity.LineItem
	lastLocalID int64
	seedOnce    sync.Once
}

// NewBillingService creates the capture workflow
func NewBillingService(
	queue *OfflineQueue,
	remote repository.RemoteBillStore,
	online OnlineChecker,
	billing config.BillingConfig,
	writeTimeout time.Duration,
	log logrus.FieldLogger,
) *BillingService {
	taxRate := billing.TaxRate
	if taxRate.IsZero() {
		taxRate = entity.DefaultTaxRate
	}
	region := billing.PhoneRegion
	if region == "" {
		region = "IN"
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &BillingService{
		queue:        queue,
		remote:       remote,
		online:       online,
		log:          log,
		taxRate:      taxRate,
		phoneRegion:  region,
		deviceID:     billing.DeviceID,
		writeTimeout: writeTimeout,
		now:          time.Now,
		drafts:       make(map[string][]entity.LineItem),
	}
}

// TaxRate returns the rate applied to new bills
func (s *BillingService) TaxRate() decimal.Decimal {
	return s.taxRate
}

// AddItem appends a priced item to the session's in-progress bill
func (s *BillingService) AddItem(session, name string, quantity, unitPrice decimal.Decimal) (*entity.LineItem, error) {
	item, err := entity.NewLineItem(name, quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[session] = append(s.drafts[session], item)
	return &item, nil
}

// RemoveItem drops an item from the session's in-progress bill. Unknown ids are ignored.
func (s *BillingService) RemoveItem(session, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.drafts[session]
	for i := range items {
		if items[i].ID == itemID {
			s.drafts[session] = append(items[:i:i], items[i+1:]...)
			return
		}
	}
}

// Draft is the in-progress bill of one session
type Draft struct {
	Items  []entity.LineItem `json:"items"`
	Totals entity.Totals     `json:"totals"`
}

// Draft returns a copy of the session's items with running totals
func (s *BillingService) Draft(session string) Draft {
	s.mu.Lock()
	items := append([]entity.LineItem{}, s.drafts[session]...)
	s.mu.Unlock()
	return Draft{Items: items, Totals: entity.ComputeTotals(items, s.taxRate)}
}

// DiscardDraft empties the session's in-progress bill
func (s *BillingService) DiscardDraft(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, session)
}

// GenerateBillInput carries the customer details for finalization
type GenerateBillInput struct {
	Session       string
	CreatedBy     string
	CustomerName  string
	CustomerPhone string
}

// CaptureResult is a finalized bill and where it went
type CaptureResult struct {
	Bill     entity.Bill   `json:"bill"`
	Delivery enum.Delivery `json:"delivery"`
	Warning  string        `json:"warning,omitempty"`
}

// GenerateBill finalizes the session's draft. On success the draft is cleared
// whatever happens to persistence; the bill is either acknowledged by the
// remote store or in the offline queue when this returns.
func (s *BillingService) GenerateBill(ctx context.Context, in GenerateBillInput) (*CaptureResult, error) {
	customer := strings.TrimSpace(in.CustomerName)

	// the draft is taken whole so items added meanwhile start the next bill
	s.mu.Lock()
	items := s.drafts[in.Session]
	delete(s.drafts, in.Session)
	s.mu.Unlock()

	var fieldErrors []apperror.FieldError
	if customer == "" {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "customer_name", Message: "customer name is required"})
	}
	if len(items) == 0 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "items", Message: "add at least one item"})
	}
	phone, err := s.normalizePhone(in.CustomerPhone)
	if err != nil {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "customer_phone", Message: err.Error()})
	}
	if len(fieldErrors) > 0 {
		s.restoreDraft(in.Session, items)
		return nil, apperror.NewValidationError(fieldErrors)
	}

	s.seedLocalID(ctx)
	now := s.now()
	totals := entity.ComputeTotals(items, s.taxRate)
	bill := entity.Bill{
		LocalID:       s.nextLocalID(now),
		DeviceID:      s.deviceID,
		CustomerName:  customer,
		CustomerPhone: phone,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		TotalAmount:   totals.TotalAmount,
		Timestamp:     now,
		CreatedBy:     in.CreatedBy,
		Synced:        false,
	}
	if err := bill.Validate(); err != nil {
		s.restoreDraft(in.Session, items)
		return nil, err
	}

	return s.persist(ctx, bill), nil
}

// restoreDraft puts items taken by a rejected GenerateBill back ahead of
// anything added since
func (s *BillingService) restoreDraft(session string, items []entity.LineItem) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[session] = append(items[:len(items):len(items)], s.drafts[session]...)
}

func (s *BillingService) persist(ctx context.Context, bill entity.Bill) *CaptureResult {
	logger := s.log.WithFields(logrus.Fields{"module": "billing", "bill": bill.Number()})

	if s.online.Online() {
		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		remoteBill := bill
		remoteBill.Synced = true
		id, err := s.remote.Write(wctx, &remoteBill)
		cancel()
		if err == nil {
			remoteBill.RemoteID = id
			logger.WithField("remote_id", id).Info("bill written to remote store")
			return &CaptureResult{Bill: remoteBill, Delivery: enum.DeliveryRemote}
		}
		werr := apperror.NewRemoteWriteError(err)
		logger.WithField("kind", werr.Kind).Warn(werr.Error() + "; queueing locally")
	}

	if err := s.queue.Enqueue(ctx, bill); err != nil {
		serr := err
		if !apperror.IsKind(err, apperror.KindLocalStorage) {
			serr = apperror.NewLocalStorageError("enqueue", err)
		}
		logger.WithField("kind", apperror.KindLocalStorage).Error(serr.Error())
		return &CaptureResult{
			Bill:     bill,
			Delivery: enum.DeliveryQueued,
			Warning:  "bill could not be saved on this device; it may be lost",
		}
	}

	logger.Info("bill queued for sync")
	return &CaptureResult{Bill: bill, Delivery: enum.DeliveryQueued}
}

func (s *BillingService) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, s.phoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", errors.New("not a valid phone number")
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// seedLocalID continues the id sequence after a restart from the newest bill
// still queued on this device
func (s *BillingService) seedLocalID(ctx context.Context) {
	s.seedOnce.Do(func() {
		queued, err := s.queue.Snapshot(ctx)
		if err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range queued {
			if queued[i].DeviceID == s.deviceID && queued[i].LocalID > s.lastLocalID {
				s.lastLocalID = queued[i].LocalID
			}
		}
	})
}

// nextLocalID returns the creation millisecond, bumped when needed so ids
// stay strictly increasing on this device
func (s *BillingService) nextLocalID(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := now.UnixMilli()
	if id <= s.lastLocalID {
		id = s.lastLocalID + 1
	}
	s.lastLocalID = id
	return id
}
