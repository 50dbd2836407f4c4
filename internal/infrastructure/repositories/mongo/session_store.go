package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	fieldAssessment       = "assessment"
	fieldCandidate        = "candidate"
	fieldQuestion         = "question_id"
	fieldFinalCode        = "final_code"
	fieldFinalWhiteboard  = "final_whiteboard_data"
	fieldCodeEvents       = "code_events"
	fieldWhiteboardEvents = "whiteboard_events"
	fieldCreatedAt        = "createdAt"
	fieldUpdatedAt        = "updatedAt"
)

type codeEventDoc struct {
	Timestamp time.Time `bson:"timestamp"`
	EventData struct {
		Length int `bson:"length"`
	} `bson:"event_data"`
}

type whiteboardEventDoc struct {
	Timestamp  time.Time `bson:"timestamp"`
	EventCount int       `bson:"event_count"`
}

// attemptDoc is the stored shape of a session, one document per
// assessment, candidate and question.
type attemptDoc struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	FinalCode        string               `bson:"final_code"`
	FinalWhiteboard  bson.RawValue        `bson:"final_whiteboard_data"`
	CodeEvents       []codeEventDoc       `bson:"code_events"`
	WhiteboardEvents []whiteboardEventDoc `bson:"whiteboard_events"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

// MongoSessionStore persists sessions as attempt documents.
type MongoSessionStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoSessionStore(coll *mongo.Collection) ports.SessionStore {
	return &MongoSessionStore{coll: coll, now: time.Now}
}

// idValue stores ids that look like ObjectIDs as ObjectIDs so documents
// written by other services match.
func idValue(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func keyFilter(key domain.SessionKey) bson.D {
	return bson.D{
		{Key: fieldAssessment, Value: idValue(key.AssessmentID)},
		{Key: fieldCandidate, Value: idValue(key.CandidateID)},
		{Key: fieldQuestion, Value: idValue(key.QuestionID)},
	}
}

func (s *MongoSessionStore) FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	var doc attemptDoc
	err := s.coll.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find attempt: %w", err)
	}
	return doc.session(key)
}

// CreateSession upserts an empty attempt. An existing attempt is returned
// untouched.
func (s *MongoSessionStore) CreateSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: fieldFinalCode, Value: ""},
		{Key: fieldFinalWhiteboard, Value: bson.A{}},
		{Key: fieldCodeEvents, Value: bson.A{}},
		{Key: fieldWhiteboardEvents, Value: bson.A{}},
		{Key: fieldCreatedAt, Value: now},
		{Key: fieldUpdatedAt, Value: now},
	}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc attemptDoc
	err := s.coll.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race to another process.
		return s.FindSession(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	return doc.session(key)
}

// UpdateSession applies update with a single $set/$push so concurrent
// writers never lose appended events. Snapshots are last writer wins.
func (s *MongoSessionStore) UpdateSession(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	set := bson.D{{Key: fieldUpdatedAt, Value: s.now()}}
	push := bson.D{}

	if update.Code != nil {
		set = append(set, bson.E{Key: fieldFinalCode, Value: *update.Code})
	}
	if update.Whiteboard != nil {
		wb, err := whiteboardToBSON(*update.Whiteboard)
		if err != nil {
			return err
		}
		set = append(set, bson.E{Key: fieldFinalWhiteboard, Value: wb})
	}
	if ev := update.AppendCodeEvent; ev != nil {
		doc := codeEventDoc{Timestamp: ev.Timestamp}
		doc.EventData.Length = ev.Length
		push = append(push, bson.E{Key: fieldCodeEvents, Value: doc})
	}
	if ev := update.AppendWhiteboardEvent; ev != nil {
		push = append(push, bson.E{Key: fieldWhiteboardEvents, Value: whiteboardEventDoc{Timestamp: ev.Timestamp, EventCount: ev.Count}})
	}

	change := bson.D{{Key: "$set", Value: set}}
	if len(push) > 0 {
		change = append(change, bson.E{Key: "$push", Value: push})
	}

	res, err := s.coll.UpdateOne(ctx, keyFilter(key), change)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (d attemptDoc) session(key domain.SessionKey) (*domain.Session, error) {
	wb, err := whiteboardFromBSON(d.FinalWhiteboard)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		Key:              key,
		Code:             d.FinalCode,
		Whiteboard:       wb,
		CodeEvents:       make([]domain.CodeEvent, 0, len(d.CodeEvents)),
		WhiteboardEvents: make([]domain.WhiteboardEvent, 0, len(d.WhiteboardEvents)),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, ev := range d.CodeEvents {
		session.CodeEvents = append(session.CodeEvents, domain.CodeEvent{Timestamp: ev.Timestamp, Length: ev.EventData.Length})
	}
	for _, ev := range d.WhiteboardEvents {
		session.WhiteboardEvents = append(session.WhiteboardEvents, domain.WhiteboardEvent{Timestamp: ev.Timestamp, Count: ev.EventCount})
	}
	return session, nil
}

func whiteboardToBSON(wb domain.Whiteboard) (bson.A, error) {
	out := make(bson.A, 0, len(wb))
	for i, el := range wb {
		var v interface{}
		if err := json.Unmarshal(el, &v); err != nil {
			return nil, fmt.Errorf("whiteboard element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// whiteboardFromBSON reads the stored snapshot back as JSON elements. A
// missing, null or non-array value is an empty whiteboard.
func whiteboardFromBSON(raw bson.RawValue) (domain.Whiteboard, error) {
	if raw.Type != bson.TypeArray {
		return domain.Whiteboard{}, nil
	}

	var elements []interface{}
	if err := raw.Unmarshal(&elements); err != nil {
		return nil, fmt.Errorf("failed to decode whiteboard: %w", err)
	}

	out := make(domain.Whiteboard, 0, len(elements))
	for i, el := range elements {
		data, err := json.Marshal(jsonValue(el))
		if err != nil {
			return nil, fmt.Errorf("whiteboard element %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// jsonValue converts decoded BSON into values encoding/json renders the way
// the client sent them.
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = jsonValue(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = jsonValue(e)
		}
		return m
	case map[string]interface{}:
		for k, e := range t {
			t[k] = jsonValue(e)
		}
		return t
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = jsonValue(e)
		}
		return out
	case []interface{}:
		for i, e := range t {
			t[i] = jsonValue(e)
		}
		return t
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return t
	}
}
