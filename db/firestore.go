package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"workscope/logger"
)

// FirestoreDB wraps the Firestore client
type FirestoreDB struct {
	client *firestore.Client
	log    *logrus.Entry
}

var _ Store = (*FirestoreDB)(nil)

// NewFirestoreDB initializes a new Firestore client
func NewFirestoreDB(ctx context.Context, projectID, credentialsPath string) (*FirestoreDB, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log := logger.WithModule("firestore")
	log.WithField("project", projectID).Info("connected to Firestore")

	return &FirestoreDB{
		client: client,
		log:    log,
	}, nil
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// Query runs a conjunctive query over a collection.
func (db *FirestoreDB) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Record, error) {
	if err := checkPredicates(preds); err != nil {
		return nil, err
	}

	coll := db.client.Collection(collection)
	q := coll.Query
	for _, p := range preds {
		q = q.Where(p.Field, string(p.Op), db.predicateValue(coll, p))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var records []Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		records = append(records, Record{ID: doc.Ref.ID, Data: doc.Data()})
	}

	return records, nil
}

// predicateValue translates document id predicates into the references Firestore expects.
func (db *FirestoreDB) predicateValue(coll *firestore.CollectionRef, p Predicate) interface{} {
	if p.Field != FieldDocumentID {
		return p.Value
	}
	switch v := p.Value.(type) {
	case string:
		return coll.Doc(v)
	case []string:
		refs := make([]*firestore.DocumentRef, 0, len(v))
		for _, id := range v {
			refs = append(refs, coll.Doc(id))
		}
		return refs
	default:
		return p.Value
	}
}

// GetByID retrieves a document by ID
func (db *FirestoreDB) GetByID(ctx context.Context, collection, id string) (*Record, error) {
	doc, err := db.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &Record{ID: doc.Ref.ID, Data: doc.Data()}, nil
}

// Set creates or replaces a document.
func (db *FirestoreDB) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if _, err := db.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document
func (db *FirestoreDB) Delete(ctx context.Context, collection, id string) error {
	if _, err := db.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}
