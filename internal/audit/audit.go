package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lol-tracker/internal/db"
	"lol-tracker/internal/middleware"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types for the lookup log
const (
	EventPlayerLookup  = "player_lookup"
	EventPlayerRefresh = "player_refresh"
	EventMatchHistory  = "match_history"
)

const writeTimeout = 5 * time.Second

// LookupEvent records one player-facing request.
type LookupEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	EventType string             `bson:"eventType"`
	Gametag   string             `bson:"gametag"`
	Region    string             `bson:"region"`
	IP        string             `bson:"ip"`
	UserAgent string             `bson:"userAgent"`
	OK        bool               `bson:"ok"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Writer persists lookup events.
type Writer interface {
	WriteLookup(ctx context.Context, event LookupEvent) error
}

// MongoWriter writes to the lookup_log collection.
type MongoWriter struct {
	db *db.MongoDB
}

func NewMongoWriter(database *db.MongoDB) *MongoWriter {
	return &MongoWriter{db: database}
}

func (w *MongoWriter) WriteLookup(ctx context.Context, event LookupEvent) error {
	_, err := w.db.LookupLog().InsertOne(ctx, event)
	return err
}

// Recorder writes events in the background. A nil Writer disables it.
type Recorder struct {
	writer Writer
	log    log.FieldLogger
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewRecorder(writer Writer, logger log.FieldLogger) *Recorder {
	return &Recorder{
		writer: writer,
		log:    logger.WithField("component", "audit"),
		now:    time.Now,
	}
}

// Record logs a lookup event (fire-and-forget).
func (r *Recorder) Record(req *http.Request, eventType, gametag, region string, ok bool) {
	if r == nil || r.writer == nil {
		return
	}
	event := LookupEvent{
		EventType: eventType,
		Gametag:   gametag,
		Region:    region,
		IP:        middleware.GetClientIP(req),
		UserAgent: req.UserAgent(),
		OK:        ok,
		CreatedAt: r.now(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.writer.WriteLookup(ctx, event); err != nil {
			r.log.WithError(err).WithField("eventType", eventType).Warn("Lookup log write failed")
		}
	}()
}

// Wait blocks until pending writes finish.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
