package mongodb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
)

type pathEntry struct {
	Left  string `bson:"left"`
	State string `bson:"state"`
	Right string `bson:"right"`
}

// trialDocument flattens the result so outcome and depth can be indexed.
type trialDocument struct {
	ID             string      `bson:"_id"`
	Machine        string      `bson:"machine"`
	Fingerprint    string      `bson:"fingerprint"`
	Input          string      `bson:"input"`
	MaxSteps       int         `bson:"max_steps"`
	TapeMode       string      `bson:"tape_mode"`
	Status         string      `bson:"status"`
	Cached         bool        `bson:"cached"`
	Outcome        string      `bson:"outcome,omitempty"`
	Depth          int         `bson:"depth"`
	Transitions    int         `bson:"transitions"`
	Frontier       int         `bson:"frontier"`
	Configurations int         `bson:"configurations"`
	Path           []pathEntry `bson:"path,omitempty"`
	StartTime      time.Time   `bson:"start_time"`
	EndTime        *time.Time  `bson:"end_time,omitempty"`
}

// TrialStore is a MongoDB-backed implementation of trial.Store.
type TrialStore struct {
	collection   *mongo.Collection
	queryTimeout time.Duration
}

// NewTrialStore creates a trial store on the named collection (default "trials").
func NewTrialStore(client *Client, collectionName string) *TrialStore {
	if collectionName == "" {
		collectionName = "trials"
	}
	return &TrialStore{
		collection:   client.Collection(collectionName),
		queryTimeout: client.config.QueryTimeout,
	}
}

// Save persists a new trial.
func (s *TrialStore) Save(ctx context.Context, t *trial.Trial) error {
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, toDocument(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return trial.ErrTrialExists
		}
		return wrapError(err)
	}
	return nil
}

// Get retrieves a trial by ID.
func (s *TrialStore) Get(ctx context.Context, id string) (*trial.Trial, error) {
	if id == "" {
		return nil, trial.ErrInvalidTrialID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var doc trialDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trial.ErrTrialNotFound
		}
		return nil, wrapError(err)
	}
	return fromDocument(&doc), nil
}

// Update replaces an existing trial.
func (s *TrialStore) Update(ctx context.Context, t *trial.Trial) error {
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": t.ID}, toDocument(t))
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// Delete removes a trial by ID.
func (s *TrialStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return trial.ErrInvalidTrialID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// List returns trials matching the filter.
func (s *TrialStore) List(ctx context.Context, filter trial.ListFilter) ([]*trial.Trial, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, buildFilter(filter), buildFindOptions(filter))
	if err != nil {
		return nil, wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []trialDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapError(err)
	}

	trials := make([]*trial.Trial, len(docs))
	for i := range docs {
		trials[i] = fromDocument(&docs[i])
	}
	return trials, nil
}

// Count returns the number of trials matching the filter.
func (s *TrialStore) Count(ctx context.Context, filter trial.ListFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}

// Summary returns aggregate statistics.
func (s *TrialStore) Summary(ctx context.Context, filter trial.ListFilter) (trial.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cursor, err := s.collection.Aggregate(ctx, summaryPipeline(filter))
	if err != nil {
		return trial.Summary{}, wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var sum trial.Summary
	if cursor.Next(ctx) {
		var row struct {
			Total     int64   `bson:"total"`
			Accepted  int64   `bson:"accepted"`
			Exhausted int64   `bson:"exhausted"`
			StepBound int64   `bson:"step_bound"`
			AvgDepth  float64 `bson:"avg_depth"`
		}
		if err := cursor.Decode(&row); err != nil {
			return trial.Summary{}, wrapError(err)
		}
		sum = trial.Summary{
			TotalTrials:     row.Total,
			AcceptedTrials:  row.Accepted,
			ExhaustedTrials: row.Exhausted,
			StepBoundTrials: row.StepBound,
			AverageDepth:    row.AvgDepth,
		}
	}
	return sum, wrapError(cursor.Err())
}

func countOutcome(o trial.Outcome) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{
		{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$outcome", string(o)}}}, 1, 0}},
	}}}
}

func summaryPipeline(filter trial.ListFilter) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: buildFilter(filter)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "accepted", Value: countOutcome(trial.OutcomeAccepted)},
			{Key: "exhausted", Value: countOutcome(trial.OutcomeExhausted)},
			{Key: "step_bound", Value: countOutcome(trial.OutcomeStepBound)},
			{Key: "avg_depth", Value: bson.D{{Key: "$avg", Value: "$depth"}}},
		}}},
	}
}

func buildFilter(filter trial.ListFilter) bson.M {
	f := bson.M{}

	if filter.Machine != "" {
		f["machine"] = filter.Machine
	}
	if len(filter.Outcomes) > 0 {
		outcomes := make([]string, len(filter.Outcomes))
		for i, o := range filter.Outcomes {
			outcomes[i] = string(o)
		}
		f["outcome"] = bson.M{"$in": outcomes}
	}

	window := bson.M{}
	if !filter.FromTime.IsZero() {
		window["$gte"] = filter.FromTime
	}
	if !filter.ToTime.IsZero() {
		window["$lte"] = filter.ToTime
	}
	if len(window) > 0 {
		f["start_time"] = window
	}

	if filter.InputPattern != "" {
		f["input"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(filter.InputPattern)}}
	}
	return f
}

func buildFindOptions(filter trial.ListFilter) *options.FindOptions {
	field := "start_time"
	switch filter.OrderBy {
	case trial.OrderByID:
		field = "_id"
	case trial.OrderByDepth:
		field = "depth"
	case trial.OrderByTransitions:
		field = "transitions"
	}

	dir := 1
	if filter.Descending {
		dir = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	return opts
}

func toDocument(t *trial.Trial) *trialDocument {
	doc := &trialDocument{
		ID:          t.ID,
		Machine:     t.Machine,
		Fingerprint: t.Fingerprint,
		Input:       t.Input,
		MaxSteps:    t.MaxSteps,
		TapeMode:    string(t.TapeMode),
		Status:      string(t.Status),
		Cached:      t.Cached,
		StartTime:   t.StartTime,
	}
	if r := t.Result; r != nil {
		doc.Outcome = string(r.Outcome)
		doc.Depth = r.Depth
		doc.Transitions = r.Transitions
		doc.Frontier = r.Frontier
		doc.Configurations = r.Configurations
		for _, c := range r.Path {
			doc.Path = append(doc.Path, pathEntry{Left: c.Left(), State: string(c.State), Right: c.Right()})
		}
	}
	if !t.EndTime.IsZero() {
		end := t.EndTime
		doc.EndTime = &end
	}
	return doc
}

func fromDocument(doc *trialDocument) *trial.Trial {
	t := &trial.Trial{
		ID:          doc.ID,
		Machine:     doc.Machine,
		Fingerprint: doc.Fingerprint,
		Input:       doc.Input,
		MaxSteps:    doc.MaxSteps,
		TapeMode:    tape.Mode(doc.TapeMode),
		Status:      trial.Status(doc.Status),
		Cached:      doc.Cached,
		StartTime:   doc.StartTime,
	}
	if doc.Outcome != "" {
		r := trial.Result{
			Outcome:        trial.Outcome(doc.Outcome),
			Depth:          doc.Depth,
			Transitions:    doc.Transitions,
			Frontier:       doc.Frontier,
			Configurations: doc.Configurations,
		}
		for _, p := range doc.Path {
			r.Path = append(r.Path, trial.Configuration{
				Tape:  tape.FromParts(p.Left, p.Right),
				State: machine.State(p.State),
			})
		}
		t.Result = &r
	}
	if doc.EndTime != nil {
		t.EndTime = *doc.EndTime
	}
	return t
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(trial.ErrOperationTimeout, err)
	}
	return errors.Join(trial.ErrConnectionFailed, err)
}

var (
	_ trial.Store           = (*TrialStore)(nil)
	_ trial.SummaryProvider = (*TrialStore)(nil)
)
