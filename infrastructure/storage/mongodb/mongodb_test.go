package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []ConfigOption{
		WithURI("mongodb://db:27017"),
		WithDatabase("sim"),
		WithQueryTimeout(time.Second),
	} {
		opt(&cfg)
	}
	if cfg.URI != "mongodb://db:27017" || cfg.Database != "sim" || cfg.QueryTimeout != time.Second {
		t.Errorf("config = %+v", cfg)
	}
	if DefaultConfig().Database != "tracetm" {
		t.Errorf("default database = %s", DefaultConfig().Database)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	tr := trial.New("t1", "pairs", "fp", "11", 10, tape.ModeStrict)
	tr.Settle(trial.Result{
		Outcome:     trial.OutcomeAccepted,
		Depth:       2,
		Transitions: 2,
		Frontier:    1,
		Path: []trial.Configuration{
			trial.Initial("start", "11"),
			{Tape: tape.FromParts("1", "1"), State: "odd"},
		},
	}, true)

	doc := toDocument(tr)
	if doc.Outcome != "accepted" || len(doc.Path) != 2 || doc.Path[1].Left != "1" {
		t.Fatalf("toDocument() = %+v", doc)
	}

	data, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("bson.Marshal() error = %v", err)
	}
	var decoded trialDocument
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("bson.Unmarshal() error = %v", err)
	}

	back := fromDocument(&decoded)
	if back.TapeMode != tape.ModeStrict || !back.Cached || back.Status != trial.StatusCompleted {
		t.Errorf("fromDocument() header = %+v", back)
	}
	if back.Outcome() != trial.OutcomeAccepted || len(back.Result.Path) != 2 {
		t.Fatalf("fromDocument() result = %+v", back.Result)
	}
	if !back.Result.Path[1].Equal(tr.Result.Path[1]) {
		t.Errorf("Path[1] = %s, want %s", back.Result.Path[1], tr.Result.Path[1])
	}
}

func TestFromDocument_Unsettled(t *testing.T) {
	t.Parallel()

	back := fromDocument(toDocument(trial.New("t", "m", "fp", "", 1, tape.ModeCompat)))
	if back.Result != nil {
		t.Errorf("Result = %+v, want nil for pending trial", back.Result)
	}
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := buildFilter(trial.ListFilter{
		Machine:      "pairs",
		Outcomes:     []trial.Outcome{trial.OutcomeExhausted},
		FromTime:     from,
		InputPattern: "1+1",
	})

	if f["machine"] != "pairs" {
		t.Errorf("machine = %v", f["machine"])
	}
	window, ok := f["start_time"].(bson.M)
	if !ok || window["$gte"] != from || window["$lte"] != nil {
		t.Errorf("start_time = %v", f["start_time"])
	}
	re := f["input"].(bson.M)["$regex"].(primitive.Regex)
	if re.Pattern != `1\+1` {
		t.Errorf("input regex = %q, want escaped literal", re.Pattern)
	}

	if len(buildFilter(trial.ListFilter{})) != 0 {
		t.Error("empty filter should match everything")
	}
}

func TestBuildFindOptions(t *testing.T) {
	t.Parallel()

	opts := buildFindOptions(trial.ListFilter{OrderBy: trial.OrderByDepth, Descending: true, Limit: 5, Offset: 2})
	sort := opts.Sort.(bson.D)
	if sort[0].Key != "depth" || sort[0].Value != -1 {
		t.Errorf("sort = %v", sort)
	}
	if *opts.Limit != 5 || *opts.Skip != 2 {
		t.Errorf("limit/skip = %d/%d", *opts.Limit, *opts.Skip)
	}
}

func TestSummaryPipeline(t *testing.T) {
	t.Parallel()

	p := summaryPipeline(trial.ListFilter{Machine: "pairs"})
	if len(p) != 2 || p[0][0].Key != "$match" || p[1][0].Key != "$group" {
		t.Errorf("pipeline = %v", p)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if err := wrapError(context.DeadlineExceeded); !errors.Is(err, trial.ErrOperationTimeout) {
		t.Errorf("wrapError(deadline) = %v", err)
	}
	if err := wrapError(errors.New("boom")); !errors.Is(err, trial.ErrConnectionFailed) {
		t.Errorf("wrapError(other) = %v", err)
	}
}
