//go:generate go run go.uber.org/mock/mockgen -source=run.go -destination=../mocks/mock_run_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

type IRunRepository interface {
	StoreRun(run DiskRun) error
	// ListRuns returns the most recent runs first.
	ListRuns() ([]DiskRun, error)
}

// DiskRun summarizes one training pass.
type DiskRun struct {
	ID           uuid.UUID
	At           time.Time
	Architecture string
	Version      int
	Samples      int
	Epochs       int
	Loss         float64
	ValLoss      float64
	MAE          float64
	Accuracy     float64
	Duration     time.Duration
	Cancelled    bool
}

type RunRepository struct {
	db  *badger.DB
	log *slog.Logger
	// limitRuns bounds ListRuns, nil means every run.
	limitRuns *int
}

func NewRunRepository(db *badger.DB, log *slog.Logger, limitRuns *int) RunRepository {
	return RunRepository{db: db, log: log, limitRuns: limitRuns}
}

// StoreRun persists a run under "run:{timestamp_padded}:{uuid}" so that a
// prefix scan returns runs in chronological order.
func (r RunRepository) StoreRun(run DiskRun) error {
	key := fmt.Sprintf("run:%019d:%s", run.At.UnixNano(), run.ID)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), marshalRun(run))
	})
}

func (r RunRepository) ListRuns() ([]DiskRun, error) {
	var runs []DiskRun
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("run:")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(prefix, []byte("9999999999999999999")...)); it.ValidForPrefix(prefix); it.Next() {
			if r.limitRuns != nil && len(runs) == *r.limitRuns {
				r.log.Debug(fmt.Sprintf("Maximum of %d runs reached", *r.limitRuns))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				run, err := unmarshalRun(value)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

const (
	runFieldID protowire.Number = iota + 1
	runFieldAt
	runFieldArchitecture
	runFieldVersion
	runFieldSamples
	runFieldEpochs
	runFieldLoss
	runFieldValLoss
	runFieldMAE
	runFieldAccuracy
	runFieldDuration
	runFieldCancelled
)

func marshalRun(run DiskRun) []byte {
	var b []byte
	b = protowire.AppendTag(b, runFieldID, protowire.BytesType)
	b = protowire.AppendString(b, run.ID.String())
	b = protowire.AppendTag(b, runFieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(run.At.UnixNano()))
	b = protowire.AppendTag(b, runFieldArchitecture, protowire.BytesType)
	b = protowire.AppendString(b, run.Architecture)
	for _, f := range []struct {
		num protowire.Number
		v   int64
	}{
		{runFieldVersion, int64(run.Version)},
		{runFieldSamples, int64(run.Samples)},
		{runFieldEpochs, int64(run.Epochs)},
		{runFieldDuration, int64(run.Duration)},
	} {
		b = protowire.AppendTag(b, f.num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.v))
	}
	for _, f := range []struct {
		num protowire.Number
		v   float64
	}{
		{runFieldLoss, run.Loss},
		{runFieldValLoss, run.ValLoss},
		{runFieldMAE, run.MAE},
		{runFieldAccuracy, run.Accuracy},
	} {
		b = protowire.AppendTag(b, f.num, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(f.v))
	}
	b = protowire.AppendTag(b, runFieldCancelled, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(run.Cancelled))
	return b
}

func unmarshalRun(b []byte) (DiskRun, error) {
	var run DiskRun
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DiskRun{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == runFieldID && typ == protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return DiskRun{}, protowire.ParseError(m)
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return DiskRun{}, err
			}
			run.ID, n = id, m
		case num == runFieldArchitecture && typ == protowire.BytesType:
			run.Architecture, n = protowire.ConsumeString(b)
		case typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			switch num {
			case runFieldAt:
				run.At = time.Unix(0, int64(v)).UTC()
			case runFieldVersion:
				run.Version = int(v)
			case runFieldSamples:
				run.Samples = int(v)
			case runFieldEpochs:
				run.Epochs = int(v)
			case runFieldDuration:
				run.Duration = time.Duration(v)
			case runFieldCancelled:
				run.Cancelled = protowire.DecodeBool(v)
			}
		case typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			f := math.Float64frombits(v)
			switch num {
			case runFieldLoss:
				run.Loss = f
			case runFieldValLoss:
				run.ValLoss = f
			case runFieldMAE:
				run.MAE = f
			case runFieldAccuracy:
				run.Accuracy = f
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return DiskRun{}, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return run, nil
}
