package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type lineItemRecord struct {
	ID        string  `firestore:"id"`
	Name      string  `firestore:"name"`
	Quantity  float64 `firestore:"quantity"`
	UnitPrice float64 `firestore:"price"`
	LineTotal float64 `firestore:"total"`
}

// billRecord is the document shape in the bills collection
type billRecord struct {
	LocalID       int64            `firestore:"localId"`
	DeviceID      string           `firestore:"deviceId"`
	CustomerName  string           `firestore:"customerName"`
	CustomerPhone string           `firestore:"customerPhone"`
	Items         []lineItemRecord `firestore:"items"`
	Subtotal      float64          `firestore:"subtotal"`
	Tax           float64          `firestore:"tax"`
	TotalAmount   float64          `firestore:"totalAmount"`
	Timestamp     time.Time        `firestore:"timestamp"`
	CreatedBy     string           `firestore:"createdBy"`
	Synced        bool             `firestore:"synced"`
	CreatedAt     time.Time        `firestore:"createdAt,serverTimestamp"`
}

func toRecord(b *entity.Bill) billRecord {
	rec := billRecord{
		LocalID:       b.LocalID,
		DeviceID:      b.DeviceID,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		Subtotal:      b.Subtotal.InexactFloat64(),
		Tax:           b.Tax.InexactFloat64(),
		TotalAmount:   b.TotalAmount.InexactFloat64(),
		Timestamp:     b.Timestamp,
		CreatedBy:     b.CreatedBy,
		Synced:        b.Synced,
	}
	for _, it := range b.Items {
		rec.Items = append(rec.Items, lineItemRecord{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity.InexactFloat64(),
			UnitPrice: it.UnitPrice.InexactFloat64(),
			LineTotal: it.LineTotal.InexactFloat64(),
		})
	}
	return rec
}

func (r *billRecord) toBill(remoteID string) entity.Bill {
	b := entity.Bill{
		RemoteID:      remoteID,
		LocalID:       r.LocalID,
		DeviceID:      r.DeviceID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Subtotal:      decimal.NewFromFloat(r.Subtotal),
		Tax:           decimal.NewFromFloat(r.Tax),
		TotalAmount:   decimal.NewFromFloat(r.TotalAmount),
		Timestamp:     r.Timestamp,
		CreatedBy:     r.CreatedBy,
		Synced:        r.Synced,
		CreatedAt:     r.CreatedAt,
	}
	for _, it := range r.Items {
		b.Items = append(b.Items, entity.LineItem{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  decimal.NewFromFloat(it.Quantity),
			UnitPrice: decimal.NewFromFloat(it.UnitPrice),
			LineTotal: decimal.NewFromFloat(it.LineTotal),
		})
	}
	return b
}

// documentID is deterministic so a resubmitted bill lands on the same document
func documentID(b *entity.Bill) string {
	return b.DeviceID + "_" + strconv.FormatInt(b.LocalID, 10)
}

// FirestoreBillStore keeps bills in a Cloud Firestore collection and streams
// changes with query snapshots
type FirestoreBillStore struct {
	client     *firestore.Client
	collection string
	log        logrus.FieldLogger
}

func NewFirestoreBillStore(ctx context.Context, cfg *config.FirestoreConfig, log logrus.FieldLogger) (*FirestoreBillStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreBillStore{client: client, collection: cfg.Collection, log: log}, nil
}

func (s *FirestoreBillStore) Write(ctx context.Context, bill *entity.Bill) (string, error) {
	id := documentID(bill)
	_, err := s.client.Collection(s.collection).Doc(id).Create(ctx, toRecord(bill))
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return "", fmt.Errorf("create bill document %s: %w", id, err)
	}
	return id, nil
}

func (s *FirestoreBillStore) Watch(ctx context.Context) (repository.BillFeed, error) {
	it := s.client.Collection(s.collection).
		OrderBy("timestamp", firestore.Desc).
		Snapshots(ctx)
	return &firestoreFeed{it: it, log: s.log}, nil
}

func (s *FirestoreBillStore) Ping(ctx context.Context) error {
	it := s.client.Collection(s.collection).Limit(1).Documents(ctx)
	defer it.Stop()
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

func (s *FirestoreBillStore) Close() error {
	return s.client.Close()
}

type firestoreFeed struct {
	it  *firestore.QuerySnapshotIterator
	log logrus.FieldLogger
}

// Next ignores ctx; the iterator is bound to the context passed to Watch.
func (f *firestoreFeed) Next(_ context.Context) ([]entity.Bill, error) {
	snap, err := f.it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
			return nil, repository.ErrFeedClosed
		}
		return nil, err
	}

	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, err
	}

	bills := make([]entity.Bill, 0, len(docs))
	for _, doc := range docs {
		var rec billRecord
		if err := doc.DataTo(&rec); err != nil {
			f.log.WithFields(logrus.Fields{"module": "remote", "doc": doc.Ref.ID}).
				Warn("dropping undecodable bill document: " + err.Error())
			continue
		}
		bills = append(bills, rec.toBill(doc.Ref.ID))
	}
	return bills, nil
}

func (f *firestoreFeed) Stop() {
	f.it.Stop()
}
