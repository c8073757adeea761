package comparisons

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kpaschen/seqcluster/lib/compressor"
	"github.com/kpaschen/seqcluster/lib/datatypes"
	messages "github.com/kpaschen/seqcluster/lib/kafka"
	"github.com/kpaschen/seqcluster/lib/settings"
	kafka "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// A KafkaEngine sends batches of jobs as kafka messages for workers to
// pick up and process. It then listens for the sizes until every job of the
// run has been answered.
type KafkaEngine struct {
	config     settings.SeqclusterSettings
	jobWriter  messageWriter
	sizeReader messageReader
	runCounter int
	cancel     context.CancelFunc
	mu         sync.Mutex
}

func (k *KafkaEngine) Initialize(config settings.SeqclusterSettings, oracle compressor.Oracle) error {
	if err := checkOracle(config, oracle); err != nil {
		return err
	}
	if config.Kafka.URL == "" {
		return fmt.Errorf("kafka engine needs a broker url: %w", datatypes.ErrUnsupportedConfiguration)
	}
	k.config = config
	if k.jobWriter == nil {
		k.jobWriter = &kafka.Writer{
			Addr:     kafka.TCP(config.Kafka.URL),
			Topic:    config.Kafka.PairTopic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	if k.sizeReader == nil {
		k.sizeReader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{config.Kafka.URL},
			GroupID: config.Kafka.GroupID,
			Topic:   config.Kafka.ResultsTopic,
		})
	}
	log.WithField("url", config.Kafka.URL).Info("kafka engine initialized")
	return nil
}

func (k *KafkaEngine) Measure(ctx context.Context, items *datatypes.ItemSet,
	joined map[datatypes.PairKey][]byte) (*datatypes.Measurements, error) {
	if k.jobWriter == nil || k.sizeReader == nil {
		return nil, fmt.Errorf("asked for measurements but engine is not initialized")
	}
	jobs, err := Jobs(items, joined, k.config.Variant)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	k.mu.Lock()
	k.cancel = cancel
	k.runCounter++
	runID := fmt.Sprintf("run-%d-%d", time.Now().UnixNano(), k.runCounter)
	k.mu.Unlock()
	defer cancel()

	// job key -> subject, for jobs still waiting for an answer
	pending := make(map[string]string, len(jobs))
	for i := range jobs {
		pending[jobKey(jobs[i].Kind, jobs[i].ID, jobs[i].Pair)] = jobs[i].Subject()
	}

	batchSize := k.config.Kafka.BatchSize
	for start, msgCounter := 0, 0; start < len(jobs); start, msgCounter = start+batchSize, msgCounter+1 {
		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		value, err := json.Marshal(messages.JobMessage{
			RunID:  runID,
			Config: k.config,
			Jobs:   jobs[start:end],
		})
		if err != nil {
			return nil, err
		}
		msg := kafka.Message{
			Key:   []byte(fmt.Sprintf("%s-%d", runID, msgCounter)),
			Value: value,
		}
		if err := k.jobWriter.WriteMessages(runCtx, msg); err != nil {
			return nil, fmt.Errorf("sending job message: %w", err)
		}
	}
	log.WithFields(log.Fields{
		"run":  runID,
		"jobs": len(jobs),
	}).Info("sent jobs to kafka")

	// A worker answers a whole batch at once, so the next answer may take
	// up to a batch's worth of per-call timeouts.
	wait := k.config.MeasureTimeout * time.Duration(batchSize)
	deadline := time.Now().Add(wait)

	ret := datatypes.NewMeasurements()
	for len(pending) > 0 {
		readCtx, readCancel := runCtx, context.CancelFunc(func() {})
		if wait > 0 {
			readCtx, readCancel = context.WithDeadline(runCtx, deadline)
		}
		msg, err := k.sizeReader.ReadMessage(readCtx)
		readCancel()
		if err != nil {
			if runCtx.Err() != nil {
				return nil, runCtx.Err()
			}
			if wait > 0 && !time.Now().Before(deadline) {
				return nil, datatypes.NewStageError(datatypes.STAGE_MEASURE, firstPending(pending),
					fmt.Errorf("no worker answer within %v: %w", wait, datatypes.ErrMeasurementTimeout))
			}
			log.WithError(err).Warn("error getting size message")
			continue
		}
		sizes := &messages.SizeMessage{}
		if err := json.Unmarshal(msg.Value, sizes); err != nil {
			log.WithError(err).Warn("error decoding size message")
			continue
		}
		if sizes.RunID != runID {
			log.WithField("run", sizes.RunID).Debug("ignoring sizes from another run")
			continue
		}
		answered := false
		for i := range sizes.Results {
			r := &sizes.Results[i]
			key := jobKey(r.Kind, r.ID, r.Pair)
			if _, ok := pending[key]; !ok {
				continue
			}
			if r.Error != "" {
				return nil, datatypes.NewStageError(datatypes.STAGE_MEASURE, r.Subject(), workerError(r))
			}
			if err := ret.Record(r.Kind, r.ID, r.Pair, r.Size); err != nil {
				return nil, datatypes.NewStageError(datatypes.STAGE_MEASURE, r.Subject(), err)
			}
			delete(pending, key)
			answered = true
		}
		if answered {
			deadline = time.Now().Add(wait)
		}
	}
	log.WithField("run", runID).Info("received all sizes")
	return ret, nil
}

func (k *KafkaEngine) Shutdown() error {
	log.Debug("kafka engine shutting down")
	k.mu.Lock()
	if k.cancel != nil {
		k.cancel()
	}
	k.mu.Unlock()
	if k.jobWriter != nil {
		k.jobWriter.Close()
	}
	if k.sizeReader != nil {
		k.sizeReader.Close()
	}
	return nil
}

// workerError rebuilds a failure reported by a worker, keeping its sentinel.
func workerError(r *datatypes.MeasureResult) error {
	if sentinel := datatypes.KindError(r.ErrorKind); sentinel != nil {
		return fmt.Errorf("worker: %s: %w", r.Error, sentinel)
	}
	return fmt.Errorf("worker: %s", r.Error)
}

// firstPending names the smallest pending subject.
func firstPending(pending map[string]string) string {
	subjects := make([]string, 0, len(pending))
	for _, subject := range pending {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects[0]
}

func jobKey(kind string, id string, pair datatypes.PairKey) string {
	if kind == datatypes.JOB_SINGLE {
		return kind + "/" + id
	}
	return kind + "/" + pair.First + "/" + pair.Second
}

// HandleJobMessage measures every job in msg with an oracle built from the
// message's settings. Failed jobs carry their error text in the result.
func HandleJobMessage(ctx context.Context, msg *messages.JobMessage) (*messages.SizeMessage, error) {
	oracle, err := compressor.New(msg.Config)
	if err != nil {
		return nil, err
	}
	measurer := NewBaseMeasurer(oracle, msg.Config.MeasureTimeout)
	ret := &messages.SizeMessage{
		RunID:   msg.RunID,
		Results: make([]datatypes.MeasureResult, 0, len(msg.Jobs)),
	}
	for i := range msg.Jobs {
		job := &msg.Jobs[i]
		result := datatypes.MeasureResult{Kind: job.Kind, ID: job.ID, Pair: job.Pair}
		size, err := measurer.MeasureJob(ctx, job)
		if err != nil {
			result.Error = err.Error()
			result.ErrorKind = datatypes.ErrorKind(err)
		} else {
			result.Size = size
		}
		ret.Results = append(ret.Results, result)
	}
	return ret, nil
}
